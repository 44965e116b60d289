package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ImageCleaner removes image files that are no longer referenced. Enqueue
// must not block on the removal itself.
type ImageCleaner interface {
	Enqueue(ctx context.Context, refs ...string)
}

// TicketService enforces who may change which ticket fields, and when.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	images     storage.ImageStore
	cleaner    ImageCleaner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Images     storage.ImageStore
	Cleaner    ImageCleaner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Status      string
	OwnerID     string
	Type        string
	Priority    string
	AssignedTo  *string
	Images      []storage.Upload
}

// TicketChanges is a partial update. A nil pointer means the field was not
// sent. AssignedTo pointing at "" unassigns the ticket.
type TicketChanges struct {
	Title        *string
	Description  *string
	Type         *string
	Priority     *string
	Status       *string
	AssignedTo   *string
	RemoveImages []int
	AddImages    []storage.Upload
}

// TicketListFilter narrows a listing.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	AssignedTo *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		images:     deps.Images,
		cleaner:    deps.Cleaner,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTicket stores a new ticket. Only staff may assign at creation time;
// images beyond the cap are dropped.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatus(strings.TrimSpace(input.Status)),
		Type:        strings.TrimSpace(input.Type),
		Priority:    domain.TicketPriority(strings.TrimSpace(input.Priority)),
		OwnerID:     strings.TrimSpace(input.OwnerID),
		Images:      []string{},
	}

	if missing := missingCreateFields(ticket); len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !ticket.Status.Valid() {
		return nil, invalidEnum("status", string(ticket.Status))
	}
	if !ticket.Priority.Valid() {
		return nil, invalidEnum("priority", string(ticket.Priority))
	}

	if v, ok := nonEmpty(input.AssignedTo); ok {
		if !actor.IsStaff {
			return nil, apperrors.NewForbidden(msgAssignForbidden)
		}
		assignee, err := s.resolveAssignee(ctx, v)
		if err != nil {
			return nil, err
		}
		ticket.AssignedTo = assignee
	}

	uploads := input.Images
	if len(uploads) > domain.MaxTicketImages {
		uploads = uploads[:domain.MaxTicketImages]
	}
	saved, err := s.saveImages(ctx, uploads)
	if err != nil {
		return nil, err
	}
	ticket.Images = saved

	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.discardImages(ctx, saved)
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorOf(actor),
		Payload: events.TicketCreatedPayload{
			OwnerID:  ticket.OwnerID,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	return ticket, nil
}

// ApplyUpdate merges changes into the stored ticket after checking every
// role and status gate. Image removals are applied before additions and the
// list is capped afterwards; files of removed images are cleaned up
// asynchronously.
func (s *TicketService) ApplyUpdate(ctx context.Context, actor domain.Actor, ticketID string, changes TicketChanges) (*domain.Ticket, error) {
	current, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeUpdate(actor, current, changes); err != nil {
		return nil, err
	}

	next := *current
	fields, err := applyFieldChanges(&next, changes)
	if err != nil {
		return nil, err
	}

	if changes.AssignedTo != nil {
		assignee, err := s.resolveAssignee(ctx, strings.TrimSpace(*changes.AssignedTo))
		if err != nil {
			return nil, err
		}
		if !sameAssignee(current.AssignedTo, assignee) {
			fields = append(fields, "assignedTo")
		}
		next.AssignedTo = assignee
	}

	kept, removed, accept := planImages(current.Images, changes.RemoveImages, len(changes.AddImages))
	added, err := s.saveImages(ctx, changes.AddImages[:accept])
	if err != nil {
		return nil, err
	}
	next.Images = append(kept, added...)

	if err := s.tickets.Update(ctx, &next); err != nil {
		s.discardImages(ctx, added)
		return nil, s.mapStoreError(err, ticketID)
	}
	s.discardImages(ctx, removed)

	s.publishUpdateEvents(ctx, actor, current, &next, fields, len(removed), len(added))
	return &next, nil
}

// DeleteTicket removes a ticket. Staff only.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	if !actor.IsStaff {
		return apperrors.NewForbidden(msgDeleteForbidden)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return s.mapStoreError(err, ticketID)
	}
	s.discardImages(ctx, ticket.Images)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    events.ActorOf(actor),
		Payload:  events.TicketDeletedPayload{Images: ticket.Images},
	})
	return nil
}

// ListTickets returns every ticket to staff and only the caller's own
// tickets to everybody else.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		AssignedTo: filter.AssignedTo,
	}
	if !actor.IsStaff {
		owner := actor.UserID
		repoFilter.OwnerID = &owner
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// GetTicket fetches a single ticket visible to the caller.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff && !actor.Owns(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.mapStoreError(err, ticketID)
	}
	return ticket, nil
}

// resolveAssignee validates a target staff id. An empty id unassigns.
func (s *TicketService) resolveAssignee(ctx context.Context, id string) (*string, error) {
	if id == "" {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("assignee not found", map[string]any{"assignedTo": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !user.IsStaff {
		return nil, apperrors.NewValidationError("assignee must be a staff member", map[string]any{"assignedTo": id})
	}
	return &user.ID, nil
}

func (s *TicketService) saveImages(ctx context.Context, uploads []storage.Upload) ([]string, error) {
	saved := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		ref, err := s.images.Save(ctx, upload)
		if err != nil {
			s.discardImages(ctx, saved)
			return nil, apperrors.NewInternalError(err)
		}
		saved = append(saved, ref)
	}
	return saved, nil
}

func (s *TicketService) discardImages(ctx context.Context, refs []string) {
	if len(refs) == 0 || s.cleaner == nil {
		return
	}
	s.cleaner.Enqueue(context.WithoutCancel(ctx), refs...)
}

func (s *TicketService) mapStoreError(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.NewInternalError(err)
}

func (s *TicketService) publishUpdateEvents(ctx context.Context, actor domain.Actor, before, after *domain.Ticket, fields []string, removed, added int) {
	if len(fields) == 0 && removed == 0 && added == 0 {
		return
	}
	actorMeta := events.ActorOf(actor)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: after.ID,
		Actor:    actorMeta,
		Payload: events.TicketUpdatedPayload{
			Fields:        fields,
			ImagesRemoved: removed,
			ImagesAdded:   added,
		},
	})
	if before.Status != after.Status {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: after.ID,
			Actor:    actorMeta,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: before.Status,
				NewStatus: after.Status,
			},
		})
	}
	if !sameAssignee(before.AssignedTo, after.AssignedTo) {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: after.ID,
			Actor:    actorMeta,
			Payload: events.TicketAssignedPayload{
				OldAssignee: before.AssignedTo,
				NewAssignee: after.AssignedTo,
			},
		})
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func missingCreateFields(t *domain.Ticket) []string {
	var missing []string
	check := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}
	check("title", t.Title)
	check("description", t.Description)
	check("status", string(t.Status))
	check("user", t.OwnerID)
	check("type", t.Type)
	check("priority", string(t.Priority))
	return missing
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
