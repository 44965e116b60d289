// Package thread is the comment view of an open ticket. It polls the server
// on a fixed interval and sends new comments one at a time.
package thread

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 2 * time.Second

var (
	ErrEmptyComment = errors.New("thread: comment is empty")
	ErrSendInFlight = errors.New("thread: a comment is already being sent")
)

// API reads and appends ticket comments.
type API interface {
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
	AddComment(ctx context.Context, ticketID, text string) (*domain.Comment, error)
}

// Option configures a Thread.
type Option func(*Thread)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(t *Thread) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Thread) { t.logger = logger }
}

// WithOnChange registers a callback invoked with the new list whenever it changes.
func WithOnChange(fn func([]domain.Comment)) Option {
	return func(t *Thread) { t.onChange = fn }
}

// Thread holds the displayed comments and the draft input for one ticket.
type Thread struct {
	api      API
	ticketID string
	interval time.Duration
	logger   *zap.Logger
	onChange func([]domain.Comment)

	mu       sync.Mutex
	comments []domain.Comment
	// sent holds comments appended after a successful send that no poll has
	// returned yet.
	sent []domain.Comment
	// issued numbers each Refresh; applied is the newest one whose result
	// replaced the list. Older results arriving late are discarded.
	issued  uint64
	applied uint64
	input   string
	sending bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a thread for ticketID.
func New(api API, ticketID string, opts ...Option) *Thread {
	t := &Thread{
		api:      api,
		ticketID: ticketID,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		comments: []domain.Comment{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TicketID returns the ticket the thread belongs to.
func (t *Thread) TicketID() string {
	return t.ticketID
}

// Comments returns a copy of the displayed list.
func (t *Thread) Comments() []domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Comment{}, t.comments...)
}

// Input returns the draft.
func (t *Thread) Input() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input
}

// SetInput replaces the draft.
func (t *Thread) SetInput(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = text
}

// Sending reports whether a send is in flight.
func (t *Thread) Sending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sending
}

// Start begins polling: one refresh right away, then one per interval. A
// thread runs at most one loop; calling Start while polling does nothing.
func (t *Thread) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		t.poll(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				t.poll(loopCtx)
			}
		}
	}()
}

// Stop ends polling and waits for the loop to exit.
func (t *Thread) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Polling reports whether the loop is running.
func (t *Thread) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Thread) poll(ctx context.Context) {
	if err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
		t.logger.Warn("comment poll failed", zap.String("ticket_id", t.ticketID), zap.Error(err))
	}
}

// Refresh replaces the list with the server's. Comments this thread sent
// that the server listing does not include yet are kept, so a poll that
// raced a send neither drops nor repeats them. When refreshes overlap, a
// result older than one already applied is dropped.
func (t *Thread) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.issued++
	seq := t.issued
	t.mu.Unlock()

	server, err := t.api.ListComments(ctx, t.ticketID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if seq < t.applied {
		t.mu.Unlock()
		return nil
	}
	t.applied = seq
	seen := make(map[string]bool, len(server))
	next := make([]domain.Comment, 0, len(server)+len(t.sent))
	for _, c := range server {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		next = append(next, c)
	}
	stillPending := t.sent[:0]
	for _, c := range t.sent {
		if seen[c.ID] {
			continue
		}
		stillPending = append(stillPending, c)
		next = append(next, c)
	}
	t.sent = stillPending
	sort.SliceStable(next, func(i, j int) bool { return next[i].CreatedAt.Before(next[j].CreatedAt) })
	t.comments = next
	snapshot := append([]domain.Comment{}, next...)
	t.mu.Unlock()

	t.notify(snapshot)
	return nil
}

// Send posts the trimmed draft. It returns ErrEmptyComment or
// ErrSendInFlight without contacting the server. On success the comment is
// appended and the draft cleared; on failure both are left as they were.
func (t *Thread) Send(ctx context.Context) (*domain.Comment, error) {
	t.mu.Lock()
	text := strings.TrimSpace(t.input)
	if text == "" {
		t.mu.Unlock()
		return nil, ErrEmptyComment
	}
	if t.sending {
		t.mu.Unlock()
		return nil, ErrSendInFlight
	}
	t.sending = true
	t.mu.Unlock()

	comment, err := t.api.AddComment(ctx, t.ticketID, text)

	t.mu.Lock()
	t.sending = false
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if !containsID(t.comments, comment.ID) {
		t.comments = append(t.comments, *comment)
		t.sent = append(t.sent, *comment)
	}
	t.input = ""
	snapshot := append([]domain.Comment{}, t.comments...)
	t.mu.Unlock()

	t.notify(snapshot)
	return comment, nil
}

func (t *Thread) notify(comments []domain.Comment) {
	if t.onChange != nil {
		t.onChange(comments)
	}
}

func containsID(comments []domain.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}
