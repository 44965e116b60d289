package board

import (
	"sort"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Columns holds one ordered ticket sequence per known status.
type Columns map[domain.TicketStatus][]domain.Ticket

// Group partitions tickets by status and sorts each column by priority,
// most urgent first. Equal priorities keep their input order. Tickets whose
// status is not one of domain.TicketStatuses appear in no column.
func Group(tickets []domain.Ticket) Columns {
	cols := make(Columns, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		cols[status] = []domain.Ticket{}
	}
	for _, t := range tickets {
		if _, known := cols[t.Status]; known {
			cols[t.Status] = append(cols[t.Status], t)
		}
	}
	for _, col := range cols {
		sort.SliceStable(col, func(i, j int) bool {
			return col[i].Priority.Rank() < col[j].Priority.Rank()
		})
	}
	return cols
}

// Find returns the column and index holding ticketID.
func (c Columns) Find(ticketID string) (domain.TicketStatus, int, bool) {
	for _, status := range domain.TicketStatuses {
		for i, t := range c[status] {
			if t.ID == ticketID {
				return status, i, true
			}
		}
	}
	return "", 0, false
}

// Len counts tickets across all columns.
func (c Columns) Len() int {
	n := 0
	for _, col := range c {
		n += len(col)
	}
	return n
}

// IDs lists the ticket ids of one column in order.
func (c Columns) IDs(status domain.TicketStatus) []string {
	ids := make([]string, 0, len(c[status]))
	for _, t := range c[status] {
		ids = append(ids, t.ID)
	}
	return ids
}

func (c Columns) clone() Columns {
	out := make(Columns, len(c))
	for status, col := range c {
		out[status] = append([]domain.Ticket{}, col...)
	}
	return out
}

// resolveDestination maps a drop target to a column. The target is either a
// status or the id of a ticket already on the board.
func (c Columns) resolveDestination(over string) (domain.TicketStatus, bool) {
	if over == "" {
		return "", false
	}
	if status := domain.TicketStatus(over); status.Valid() {
		return status, true
	}
	status, _, ok := c.Find(over)
	return status, ok
}

// move removes ticketID from src and inserts it into dst in front of the
// ticket over, or at the end when over names the column itself. The moved
// ticket's status is rewritten to dst.
func (c Columns) move(ticketID string, src, dst domain.TicketStatus, over string) {
	var moved domain.Ticket
	remaining := make([]domain.Ticket, 0, len(c[src]))
	for _, t := range c[src] {
		if t.ID == ticketID {
			moved = t
			continue
		}
		remaining = append(remaining, t)
	}
	moved.Status = dst
	c[src] = remaining

	target := c[dst]
	at := len(target)
	for i, t := range target {
		if t.ID == over {
			at = i
			break
		}
	}
	next := make([]domain.Ticket, 0, len(target)+1)
	next = append(next, target[:at]...)
	next = append(next, moved)
	next = append(next, target[at:]...)
	c[dst] = next
}
