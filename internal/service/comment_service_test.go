package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository/memrepo"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func TestCommentThread(t *testing.T) {
	tickets := newMemTickets(openTicket("t1", "u-alice"))
	comments := memrepo.NewComments()
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	dispatcher.Subscribe(events.EventCommentAdded, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	svc := NewCommentService(CommentDependencies{CommentRepo: comments, TicketRepo: tickets, Dispatcher: dispatcher})
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()

	if _, err := svc.AddComment(ctx, alice, "t1", "first"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	second, err := svc.AddComment(ctx, sam, "t1", "  on it  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if second.Author != "sam" || second.Text != "  on it  " {
		t.Fatalf("comment = %+v", second)
	}

	list, err := svc.ListComments(ctx, "t1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(list) != 2 || list[0].Text != "first" || list[1].ID != second.ID {
		t.Fatalf("thread = %+v", list)
	}
	if len(published) != 2 {
		t.Fatalf("published %d events, want 2", len(published))
	}
}

func TestAddCommentRejects(t *testing.T) {
	svc := NewCommentService(CommentDependencies{
		CommentRepo: memrepo.NewComments(),
		TicketRepo:  newMemTickets(openTicket("t1", "u-alice")),
	})
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  domain.Actor
		ticket string
		text   string
		code   string
	}{
		{"anonymous", domain.Actor{}, "t1", "hello", apperrors.CodeUnauthorized},
		{"blank text", alice, "t1", " \t ", apperrors.CodeValidation},
		{"missing ticket", alice, "t9", "hello", apperrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddComment(ctx, tc.actor, tc.ticket, tc.text)
			wantCode(t, err, tc.code)
		})
	}
}

func TestStringPreview(t *testing.T) {
	if got := stringPreview("  short ", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := stringPreview("abcdefghij", 6); got != "abc..." {
		t.Fatalf("got %q", got)
	}
}
