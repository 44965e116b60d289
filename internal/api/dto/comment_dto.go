package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" form:"text"`
}

// Comment is a thread entry.
type Comment struct {
	ID        string    `json:"_id"`
	Ticket    string    `json:"ticket"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewComment converts a domain comment.
func NewComment(c *domain.Comment) Comment {
	return Comment{
		ID:        c.ID,
		Ticket:    c.TicketID,
		Author:    c.Author,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// Domain converts back to the domain model.
func (c Comment) Domain() domain.Comment {
	return domain.Comment{
		ID:        c.ID,
		TicketID:  c.Ticket,
		Author:    c.Author,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}
