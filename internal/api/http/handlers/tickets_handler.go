package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/storage"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	query := parseTicketListQuery(c)
	tickets, err := h.service.ListTickets(c.UserContext(), actor, service.TicketListFilter{
		Statuses:   query.Statuses,
		AssignedTo: query.AssignedTo,
	})
	if err != nil {
		return err
	}
	items := make([]dto.Ticket, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicket(&tickets[i]))
	}
	return c.JSON(items)
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	form, err := parseTicketForm(c)
	if err != nil {
		return err
	}
	input := service.TicketCreateInput{
		Title:       form.value("title"),
		Description: form.value("description"),
		Status:      form.value("status"),
		OwnerID:     form.value("user"),
		Type:        form.value("type"),
		Priority:    form.value("priority"),
		AssignedTo:  form.optional("assignedTo"),
		Images:      storage.FromFileHeaders(form.files),
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTicket(ticket))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicket(ticket))
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	form, err := parseTicketForm(c)
	if err != nil {
		return err
	}
	changes := service.TicketChanges{
		Title:        form.optional("title"),
		Description:  form.optional("description"),
		Type:         form.optional("type"),
		Priority:     form.optional("priority"),
		Status:       form.optional("status"),
		AssignedTo:   form.optional("assignedTo"),
		RemoveImages: form.removedImages(),
		AddImages:    storage.FromFileHeaders(form.files),
	}
	ticket, err := h.service.ApplyUpdate(c.UserContext(), actor, c.Params("id"), changes)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicket(ticket))
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	if err := h.service.DeleteTicket(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Ticket deleted successfully"})
}

func parseTicketListQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Statuses = append(query.Statuses, domain.TicketStatus(part))
			}
		}
	}
	if assignee := strings.TrimSpace(c.Query("assignedTo")); assignee != "" {
		query.AssignedTo = &assignee
	}
	return query
}
