// Package memrepo keeps users, tickets and comments in process memory behind
// the repository interfaces. Handler and service tests run against it.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

var (
	_ repository.UserRepository    = (*Users)(nil)
	_ repository.TicketRepository  = (*Tickets)(nil)
	_ repository.CommentRepository = (*Comments)(nil)
)

// Tickets stores tickets in insertion order.
type Tickets struct {
	mu     sync.Mutex
	rows   map[string]domain.Ticket
	order  []string
	writes int
	err    error
	now    func() time.Time
}

// NewTickets seeds the store.
func NewTickets(seed ...domain.Ticket) *Tickets {
	r := &Tickets{rows: map[string]domain.Ticket{}, now: time.Now}
	for _, t := range seed {
		r.rows[t.ID] = cloneTicket(t)
		r.order = append(r.order, t.ID)
	}
	return r
}

// SetError makes every later Create and Update fail with err.
func (r *Tickets) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Writes counts successful updates.
func (r *Tickets) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Len returns the number of stored tickets.
func (r *Tickets) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Snapshot returns a copy of the stored ticket, or the zero value.
func (r *Tickets) Snapshot(id string) domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneTicket(r.rows[id])
}

func (r *Tickets) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	t.CreatedAt = r.now().UTC()
	t.UpdatedAt = t.CreatedAt
	r.rows[t.ID] = cloneTicket(*t)
	r.order = append(r.order, t.ID)
	return nil
}

func (r *Tickets) Update(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = r.now().UTC()
	r.rows[t.ID] = cloneTicket(*t)
	r.writes++
	return nil
}

func (r *Tickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := cloneTicket(t)
	return &c, nil
}

func (r *Tickets) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *Tickets) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Ticket{}
	for _, id := range r.order {
		t, ok := r.rows[id]
		if !ok || !matches(t, f) {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	return out, nil
}

func matches(t domain.Ticket, f repository.TicketFilter) bool {
	if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
		return false
	}
	if f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == t.Status {
			return true
		}
	}
	return false
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Images = append([]string{}, t.Images...)
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		t.AssignedTo = &v
	}
	return t
}

// Users stores accounts keyed by id.
type Users struct {
	mu   sync.Mutex
	rows map[string]domain.User
}

// NewUsers seeds the store.
func NewUsers(seed ...domain.User) *Users {
	r := &Users{rows: map[string]domain.User{}}
	for _, u := range seed {
		r.rows[u.ID] = u
	}
	return r
}

// Put inserts or replaces u.
func (r *Users) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.ID] = u
}

func (r *Users) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.rows[u.ID] = *u
	return nil
}

func (r *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *Users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Users) ListStaff(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.rows {
		if u.IsStaff {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *Users) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

// Comments is an append-only comment log.
type Comments struct {
	mu   sync.Mutex
	rows []domain.Comment
}

// NewComments returns an empty log.
func NewComments() *Comments {
	return &Comments{}
}

func (r *Comments) Create(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *c)
	return nil
}

// ListByTicket returns the ticket's comments ordered by creation time, then id.
func (r *Comments) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.rows {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
