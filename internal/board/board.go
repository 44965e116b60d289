// Package board keeps the staff Kanban view in step with the server. Drags
// are applied optimistically and the board is always rebuilt from a fresh
// ticket listing afterwards, whether or not the server accepted the move.
package board

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketSource lists every ticket the caller can see.
type TicketSource interface {
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
}

// StatusUpdater persists a status change.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
}

// API is what the board needs from the server.
type API interface {
	TicketSource
	StatusUpdater
}

// DragEnd is a finished drag gesture. Over is a status or the id of the
// ticket the card was dropped onto; empty means it was dropped nowhere.
type DragEnd struct {
	TicketID string
	Over     string
}

// Option configures a Board.
type Option func(*Board)

// WithErrorReporter sets the function that shows failures to the user.
func WithErrorReporter(report func(error)) Option {
	return func(b *Board) { b.report = report }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Board) { b.logger = logger }
}

// Board is the staff ticket board.
type Board struct {
	api    API
	report func(error)
	logger *zap.Logger

	mu      sync.Mutex
	columns Columns
}

// New builds an empty board. Call Refresh to load it.
func New(api API, opts ...Option) *Board {
	b := &Board{
		api:     api,
		report:  func(error) {},
		logger:  zap.NewNop(),
		columns: Group(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Columns returns a copy of the current columns.
func (b *Board) Columns() Columns {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.columns.clone()
}

// Refresh replaces the columns with a regrouped server listing. On error the
// previous columns are kept.
func (b *Board) Refresh(ctx context.Context) error {
	tickets, err := b.api.ListTickets(ctx)
	if err != nil {
		b.logger.Warn("ticket listing failed", zap.Error(err))
		return err
	}
	cols := Group(tickets)
	if dropped := len(tickets) - cols.Len(); dropped > 0 {
		b.logger.Warn("tickets with unknown status hidden from board", zap.Int("count", dropped))
	}
	b.mu.Lock()
	b.columns = cols
	b.mu.Unlock()
	return nil
}

// HandleDragEnd applies a drag. It reports false without contacting the
// server when the drop target does not resolve or the card stays in its
// column. Otherwise the card moves locally, the status update is sent, and
// the board is refreshed regardless of the outcome. Failures are passed to
// the error reporter and returned.
func (b *Board) HandleDragEnd(ctx context.Context, ev DragEnd) (bool, error) {
	b.mu.Lock()
	src, _, found := b.columns.Find(ev.TicketID)
	dst, resolved := b.columns.resolveDestination(ev.Over)
	if !found || !resolved || src == dst {
		b.mu.Unlock()
		return false, nil
	}
	b.columns.move(ev.TicketID, src, dst, ev.Over)
	b.mu.Unlock()

	_, updateErr := b.api.UpdateStatus(ctx, ev.TicketID, dst)
	if updateErr != nil {
		b.logger.Warn("status update failed",
			zap.String("ticket_id", ev.TicketID),
			zap.String("status", string(dst)),
			zap.Error(updateErr))
		b.report(updateErr)
	}

	refreshErr := b.Refresh(ctx)
	if refreshErr != nil {
		b.report(refreshErr)
	}
	return true, errors.Join(updateErr, refreshErr)
}
