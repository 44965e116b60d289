package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Ticket is the ticket document as served by the API.
type Ticket struct {
	ID          string                `json:"_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	User        string                `json:"user"`
	Type        string                `json:"type"`
	Priority    domain.TicketPriority `json:"priority"`
	Image       []string              `json:"image"`
	AssignedTo  *string               `json:"assignedTo"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// NewTicket converts a domain ticket.
func NewTicket(t *domain.Ticket) Ticket {
	images := t.Images
	if images == nil {
		images = []string{}
	}
	return Ticket{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		User:        t.OwnerID,
		Type:        t.Type,
		Priority:    t.Priority,
		Image:       images,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Domain converts back to the domain model.
func (t Ticket) Domain() domain.Ticket {
	return domain.Ticket{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Type:        t.Type,
		Priority:    t.Priority,
		OwnerID:     t.User,
		AssignedTo:  t.AssignedTo,
		Images:      append([]string{}, t.Image...),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TicketListQuery captures GET /tickets filters.
type TicketListQuery struct {
	Statuses   []domain.TicketStatus
	AssignedTo *string
}
