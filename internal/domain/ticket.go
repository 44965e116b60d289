package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "created"
	TicketStatusInProgress TicketStatus = "in progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists the known statuses in board order.
var TicketStatuses = []TicketStatus{
	TicketStatusCreated,
	TicketStatusInProgress,
	TicketStatusClosed,
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// priorityOrder is most urgent first.
var priorityOrder = []TicketPriority{
	TicketPriorityUrgent,
	TicketPriorityHigh,
	TicketPriorityMedium,
	TicketPriorityLow,
}

// Rank orders priorities, urgent=0 through low=3. Unknown values rank last.
func (p TicketPriority) Rank() int {
	for i, known := range priorityOrder {
		if p == known {
			return i
		}
	}
	return len(priorityOrder)
}

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	return p.Rank() < len(priorityOrder)
}

// MaxTicketImages caps the image list of a ticket.
const MaxTicketImages = 3

// Ticket is a repair request owned by the user that created it.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Type        string
	Priority    TicketPriority
	OwnerID     string
	AssignedTo  *string
	Images      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
