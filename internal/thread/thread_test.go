package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu        sync.Mutex
	comments  []domain.Comment
	listCalls int
	adds      int
	addErr    error
	// listGate, when set, blocks ListComments after it has read the list.
	listGate chan struct{}
	listed   chan struct{}
	addGate  chan struct{}
}

func (f *fakeAPI) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	f.mu.Lock()
	out := append([]domain.Comment{}, f.comments...)
	f.listCalls++
	gate, listed := f.listGate, f.listed
	f.mu.Unlock()

	if listed != nil {
		listed <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeAPI) AddComment(ctx context.Context, ticketID, text string) (*domain.Comment, error) {
	f.mu.Lock()
	gate := f.addGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.addErr != nil {
		return nil, f.addErr
	}
	c := f.post(ticketID, "alice", text)
	return &c, nil
}

func (f *fakeAPI) post(ticketID, author, text string) domain.Comment {
	n := len(f.comments) + 1
	c := domain.Comment{
		ID:        fmt.Sprintf("c%d", n),
		TicketID:  ticketID,
		Author:    author,
		Text:      text,
		CreatedAt: base.Add(time.Duration(n) * time.Minute),
	}
	f.comments = append(f.comments, c)
	return c
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func ids(comments []domain.Comment) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return out
}

func TestStartRunsSingleLoop(t *testing.T) {
	api := &fakeAPI{}
	th := New(api, "t1", WithInterval(time.Hour))

	th.Start(context.Background())
	th.Start(context.Background())
	waitFor(t, func() bool { return api.calls() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if got := api.calls(); got != 1 {
		t.Fatalf("list calls = %d, want 1", got)
	}
	if !th.Polling() {
		t.Fatal("expected thread to be polling")
	}

	th.Stop()
	th.Stop()
	if th.Polling() {
		t.Fatal("expected polling to stop")
	}

	th.Start(context.Background())
	defer th.Stop()
	waitFor(t, func() bool { return api.calls() == 2 })
}

func TestPollPicksUpOtherAuthors(t *testing.T) {
	api := &fakeAPI{}
	changes := make(chan []domain.Comment, 16)
	th := New(api, "t1", WithInterval(5*time.Millisecond), WithOnChange(func(c []domain.Comment) {
		select {
		case changes <- c:
		default:
		}
	}))
	th.Start(context.Background())
	defer th.Stop()

	api.mu.Lock()
	api.post("t1", "sam", "looking into it")
	api.mu.Unlock()

	waitFor(t, func() bool { return len(th.Comments()) == 1 })
	if got := th.Comments()[0].Author; got != "sam" {
		t.Fatalf("author = %q", got)
	}
	if len(changes) == 0 {
		t.Fatal("expected change notifications")
	}
}

func TestStopHaltsPolling(t *testing.T) {
	api := &fakeAPI{}
	th := New(api, "t1", WithInterval(2*time.Millisecond))
	th.Start(context.Background())
	waitFor(t, func() bool { return api.calls() >= 3 })
	th.Stop()

	after := api.calls()
	time.Sleep(20 * time.Millisecond)
	if got := api.calls(); got != after {
		t.Fatalf("polled %d more times after Stop", got-after)
	}
}

func TestSendRejectsEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		api := &fakeAPI{}
		th := New(api, "t1")
		th.SetInput(input)
		if _, err := th.Send(context.Background()); !errors.Is(err, ErrEmptyComment) {
			t.Fatalf("Send(%q) err = %v", input, err)
		}
		if api.adds != 0 {
			t.Fatalf("Send(%q) reached the server", input)
		}
	}
}

func TestSendSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{addGate: gate}
	th := New(api, "t1")
	th.SetInput("  printer on fire  ")

	type result struct {
		c   *domain.Comment
		err error
	}
	first := make(chan result, 1)
	go func() {
		c, err := th.Send(context.Background())
		first <- result{c, err}
	}()
	waitFor(t, th.Sending)

	if _, err := th.Send(context.Background()); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("second send err = %v", err)
	}
	close(gate)

	res := <-first
	if res.err != nil {
		t.Fatalf("first send: %v", res.err)
	}
	if res.c.Text != "printer on fire" {
		t.Fatalf("text = %q", res.c.Text)
	}
	if th.Input() != "" {
		t.Fatalf("input not cleared: %q", th.Input())
	}
	if got := ids(th.Comments()); len(got) != 1 || got[0] != res.c.ID {
		t.Fatalf("comments = %v", got)
	}
	if api.adds != 1 {
		t.Fatalf("server saw %d adds", api.adds)
	}
}

func TestSendFailureKeepsState(t *testing.T) {
	api := &fakeAPI{}
	api.post("t1", "sam", "first")
	th := New(api, "t1")
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	api.addErr = errors.New("boom")
	th.SetInput("second")
	if _, err := th.Send(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if th.Input() != "second" {
		t.Fatalf("input = %q", th.Input())
	}
	if got := ids(th.Comments()); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("comments = %v", got)
	}
	if th.Sending() {
		t.Fatal("send still marked in flight")
	}
}

func TestStalePollKeepsSentComment(t *testing.T) {
	api := &fakeAPI{}
	api.post("t1", "sam", "hello")
	th := New(api, "t1")
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A poll reads the list, then stalls until after the send completes.
	gate := make(chan struct{})
	listed := make(chan struct{}, 1)
	api.mu.Lock()
	api.listGate, api.listed = gate, listed
	api.mu.Unlock()

	pollDone := make(chan error, 1)
	go func() { pollDone <- th.Refresh(context.Background()) }()
	<-listed

	api.mu.Lock()
	api.listGate, api.listed = nil, nil
	api.mu.Unlock()

	th.SetInput("any update?")
	sent, err := th.Send(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	close(gate)
	if err := <-pollDone; err != nil {
		t.Fatal(err)
	}
	if got := ids(th.Comments()); len(got) != 2 || got[1] != sent.ID {
		t.Fatalf("after stale poll comments = %v", got)
	}

	// The next poll includes the comment; it must not appear twice.
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(th.Comments()); len(got) != 2 || got[0] != "c1" || got[1] != sent.ID {
		t.Fatalf("after fresh poll comments = %v", got)
	}
	th.mu.Lock()
	pending := len(th.sent)
	th.mu.Unlock()
	if pending != 0 {
		t.Fatalf("%d comments still pending", pending)
	}
}

func TestOverlappingPollsKeepSentComment(t *testing.T) {
	api := &fakeAPI{}
	api.post("t1", "sam", "hello")
	th := New(api, "t1")
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The first poll reads the list before the send and answers last.
	gate := make(chan struct{})
	listed := make(chan struct{}, 1)
	api.mu.Lock()
	api.listGate, api.listed = gate, listed
	api.mu.Unlock()

	slowDone := make(chan error, 1)
	go func() { slowDone <- th.Refresh(context.Background()) }()
	<-listed

	api.mu.Lock()
	api.listGate, api.listed = nil, nil
	api.mu.Unlock()

	th.SetInput("hi")
	sent, err := th.Send(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// A second poll starts after the send and sees the comment.
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-slowDone; err != nil {
		t.Fatal(err)
	}

	if got := ids(th.Comments()); len(got) != 2 || got[0] != "c1" || got[1] != sent.ID {
		t.Fatalf("comments after both polls = %v", got)
	}
}

func TestRefreshErrorKeepsList(t *testing.T) {
	api := &fakeAPI{}
	api.post("t1", "sam", "hello")
	th := New(api, "t1")
	if err := th.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api.listGate = make(chan struct{})
	if err := th.Refresh(ctx); err == nil {
		t.Fatal("expected cancelled refresh to fail")
	}
	if len(th.Comments()) != 1 {
		t.Fatalf("list lost on error: %v", ids(th.Comments()))
	}
}
