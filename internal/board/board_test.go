package board

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// fakeServer holds the authoritative ticket list.
type fakeServer struct {
	mu        sync.Mutex
	tickets   []domain.Ticket
	updates   int
	failWith  error
	listCalls int
	during    func()
}

func (s *fakeServer) ListTickets(context.Context) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return append([]domain.Ticket{}, s.tickets...), nil
}

func (s *fakeServer) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if s.during != nil {
		s.during()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.failWith != nil {
		return nil, s.failWith
	}
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			s.tickets[i].Status = status
			t := s.tickets[i]
			return &t, nil
		}
	}
	return nil, errors.New("not found")
}

func tk(id string, status domain.TicketStatus, priority domain.TicketPriority) domain.Ticket {
	return domain.Ticket{ID: id, Status: status, Priority: priority}
}

func TestGroupPartitionsAndSorts(t *testing.T) {
	tickets := []domain.Ticket{
		tk("a", "created", "low"),
		tk("b", "created", "urgent"),
		tk("c", "closed", "medium"),
		tk("d", "created", "low"),
		tk("e", "archived", "high"),
		tk("f", "created", "whatever"),
		tk("g", "in progress", "high"),
		tk("h", "created", "urgent"),
	}
	cols := Group(tickets)

	if got := cols.IDs("created"); !reflect.DeepEqual(got, []string{"b", "h", "a", "d", "f"}) {
		t.Fatalf("created = %v", got)
	}
	if got := cols.IDs("in progress"); !reflect.DeepEqual(got, []string{"g"}) {
		t.Fatalf("in progress = %v", got)
	}
	if got := cols.IDs("closed"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("closed = %v", got)
	}
	if cols.Len() != len(tickets)-1 {
		t.Fatalf("board holds %d tickets", cols.Len())
	}
	if _, _, ok := cols.Find("e"); ok {
		t.Fatal("unknown status should not be on the board")
	}
}

func TestGroupEmpty(t *testing.T) {
	cols := Group(nil)
	for _, status := range domain.TicketStatuses {
		if col, ok := cols[status]; !ok || len(col) != 0 {
			t.Fatalf("column %q = %v, %v", status, col, ok)
		}
	}
}

func newLoadedBoard(t *testing.T, srv *fakeServer, opts ...Option) *Board {
	t.Helper()
	b := New(srv, opts...)
	if err := b.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return b
}

func TestHandleDragEndNoops(t *testing.T) {
	srv := &fakeServer{tickets: []domain.Ticket{
		tk("a", "created", "low"),
		tk("b", "created", "high"),
		tk("c", "closed", "low"),
	}}
	b := newLoadedBoard(t, srv)
	before := b.Columns()

	cases := []DragEnd{
		{TicketID: "a", Over: ""},
		{TicketID: "a", Over: "nowhere"},
		{TicketID: "a", Over: "created"},
		{TicketID: "a", Over: "b"},
		{TicketID: "ghost", Over: "closed"},
	}
	for _, ev := range cases {
		moved, err := b.HandleDragEnd(context.Background(), ev)
		if moved || err != nil {
			t.Fatalf("%+v: moved=%v err=%v", ev, moved, err)
		}
	}
	if srv.updates != 0 || srv.listCalls != 1 {
		t.Fatalf("no-op drags hit the server: updates=%d lists=%d", srv.updates, srv.listCalls)
	}
	if !reflect.DeepEqual(b.Columns(), before) {
		t.Fatal("no-op drag changed the board")
	}
}

func TestHandleDragEndOptimisticPlacement(t *testing.T) {
	srv := &fakeServer{tickets: []domain.Ticket{
		tk("a", "created", "low"),
		tk("x", "closed", "urgent"),
		tk("y", "closed", "low"),
	}}
	b := newLoadedBoard(t, srv)

	var during Columns
	srv.during = func() { during = b.Columns() }

	moved, err := b.HandleDragEnd(context.Background(), DragEnd{TicketID: "a", Over: "y"})
	if !moved || err != nil {
		t.Fatalf("moved=%v err=%v", moved, err)
	}
	if got := during.IDs("closed"); !reflect.DeepEqual(got, []string{"x", "a", "y"}) {
		t.Fatalf("optimistic closed column = %v", got)
	}
	if s, _, _ := during.Find("a"); s != "closed" || during["closed"][1].Status != "closed" {
		t.Fatalf("optimistic ticket status = %q", during["closed"][1].Status)
	}
	if len(during["created"]) != 0 {
		t.Fatalf("source column still holds %v", during.IDs("created"))
	}

	// after the refetch the server's ordering wins
	if got := b.Columns().IDs("closed"); !reflect.DeepEqual(got, []string{"x", "a", "y"}) {
		t.Fatalf("closed after refresh = %v", got)
	}
	if srv.listCalls != 2 {
		t.Fatalf("list calls = %d, want 2", srv.listCalls)
	}
}

func TestHandleDragEndToColumnAppends(t *testing.T) {
	srv := &fakeServer{tickets: []domain.Ticket{
		tk("a", "created", "urgent"),
		tk("p", "in progress", "low"),
	}}
	b := newLoadedBoard(t, srv)
	var during Columns
	srv.during = func() { during = b.Columns() }

	if _, err := b.HandleDragEnd(context.Background(), DragEnd{TicketID: "a", Over: "in progress"}); err != nil {
		t.Fatal(err)
	}
	if got := during.IDs("in progress"); !reflect.DeepEqual(got, []string{"p", "a"}) {
		t.Fatalf("optimistic column = %v", got)
	}
	if got := b.Columns().IDs("in progress"); !reflect.DeepEqual(got, []string{"a", "p"}) {
		t.Fatalf("server ordering = %v", got)
	}
}

// A rejected move is shown optimistically, reported, then undone by the refetch.
func TestHandleDragEndFailureConverges(t *testing.T) {
	srv := &fakeServer{
		tickets:  []domain.Ticket{tk("a", "created", "medium")},
		failWith: errors.New("forbidden"),
	}
	var reported []error
	b := newLoadedBoard(t, srv, WithErrorReporter(func(err error) { reported = append(reported, err) }))
	var during Columns
	srv.during = func() { during = b.Columns() }

	moved, err := b.HandleDragEnd(context.Background(), DragEnd{TicketID: "a", Over: "closed"})
	if !moved || err == nil {
		t.Fatalf("moved=%v err=%v", moved, err)
	}
	if got := during.IDs("closed"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("optimistic closed = %v", got)
	}
	cols := b.Columns()
	if !reflect.DeepEqual(cols.IDs("created"), []string{"a"}) || len(cols["closed"]) != 0 {
		t.Fatalf("board after failure = created %v closed %v", cols.IDs("created"), cols.IDs("closed"))
	}
	if len(reported) != 1 {
		t.Fatalf("reported %d errors", len(reported))
	}
	if srv.listCalls != 2 {
		t.Fatalf("list calls = %d, want refetch after failure", srv.listCalls)
	}
}

type fakeUsers map[string]string

func (f fakeUsers) GetUser(_ context.Context, id string) (*dto.PublicUser, error) {
	name, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &dto.PublicUser{ID: id, Username: name}, nil
}

func TestAssigneeNames(t *testing.T) {
	s1, gone := "s1", "deleted"
	tickets := []domain.Ticket{
		{ID: "a", AssignedTo: &s1},
		{ID: "b", AssignedTo: &gone},
		{ID: "c", AssignedTo: &s1},
		{ID: "d"},
	}
	names := ResolveNames(context.Background(), fakeUsers{"s1": "sam"}, tickets)
	if !reflect.DeepEqual(names, map[string]string{"s1": "sam"}) {
		t.Fatalf("names = %v", names)
	}
	if got := AssigneeName(names, &s1); got != "sam" {
		t.Fatalf("got %q", got)
	}
	if got := AssigneeName(names, &gone); got != domain.UnknownUserName {
		t.Fatalf("got %q", got)
	}
	if got := AssigneeName(names, nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
