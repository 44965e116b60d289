// Package session holds client-side state: who is signed in, which ticket is
// selected and which dialog is open. Only the view dialog polls comments.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/thread"
)

// Mode is the open dialog.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeCreate Mode = "create"
	ModeView   Mode = "view"
	ModeEdit   Mode = "edit"
)

var (
	ErrInvalidTransition = errors.New("session: invalid dialog transition")
	ErrNotEditable       = errors.New("session: ticket cannot be edited by the current user")
)

// Session is safe for concurrent use.
type Session struct {
	comments   thread.API
	threadOpts []thread.Option

	mu       sync.Mutex
	user     domain.Actor
	mode     Mode
	selected *domain.Ticket
	thread   *thread.Thread
}

// New returns a signed-out session with no dialog open. Threads opened by
// the view dialog read comments through api.
func New(api thread.API, opts ...thread.Option) *Session {
	return &Session{comments: api, threadOpts: opts, mode: ModeNone}
}

// SignIn sets the current user.
func (s *Session) SignIn(user domain.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// SignOut clears the user and closes any dialog.
func (s *Session) SignOut() {
	s.Close()
	s.mu.Lock()
	s.user = domain.Actor{}
	s.mu.Unlock()
}

func (s *Session) User() domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Selected returns the ticket shown by the view or edit dialog.
func (s *Session) Selected() (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return domain.Ticket{}, false
	}
	return *s.selected, true
}

// Thread returns the comment thread of the view dialog, or nil.
func (s *Session) Thread() *thread.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread
}

// CanEditSelected reports whether the current user may open the edit dialog.
func (s *Session) CanEditSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected != nil && service.CanEdit(s.user, s.selected)
}

// OpenCreate opens the create dialog.
func (s *Session) OpenCreate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeNone {
		return s.invalid(ModeCreate)
	}
	s.mode = ModeCreate
	return nil
}

// OpenTicket selects t and opens the view dialog, which starts polling its
// comments.
func (s *Session) OpenTicket(ctx context.Context, t domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeNone {
		return s.invalid(ModeView)
	}
	s.selected = &t
	s.enterView(ctx)
	return nil
}

// Edit switches from view to edit and stops the comment poll.
func (s *Session) Edit() error {
	s.mu.Lock()
	if s.mode != ModeView {
		defer s.mu.Unlock()
		return s.invalid(ModeEdit)
	}
	if !service.CanEdit(s.user, s.selected) {
		s.mu.Unlock()
		return ErrNotEditable
	}
	th := s.leaveView()
	s.mode = ModeEdit
	s.mu.Unlock()

	stopThread(th)
	return nil
}

// CancelEdit returns to the view dialog without changes.
func (s *Session) CancelEdit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeEdit {
		return s.invalid(ModeView)
	}
	s.enterView(ctx)
	return nil
}

// Saved returns to the view dialog showing the ticket as the server stored it.
func (s *Session) Saved(ctx context.Context, updated domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeEdit {
		return s.invalid(ModeView)
	}
	s.selected = &updated
	s.enterView(ctx)
	return nil
}

// Close closes whatever dialog is open and clears the selection.
func (s *Session) Close() {
	s.mu.Lock()
	th := s.leaveView()
	s.mode = ModeNone
	s.selected = nil
	s.mu.Unlock()

	stopThread(th)
}

// enterView must be called with mu held.
func (s *Session) enterView(ctx context.Context) {
	s.mode = ModeView
	s.thread = thread.New(s.comments, s.selected.ID, s.threadOpts...)
	s.thread.Start(ctx)
}

// leaveView detaches the running thread; the caller stops it after
// releasing mu.
func (s *Session) leaveView() *thread.Thread {
	th := s.thread
	s.thread = nil
	return th
}

func (s *Session) invalid(to Mode) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.mode, to)
}

func stopThread(th *thread.Thread) {
	if th != nil {
		th.Stop()
	}
}
