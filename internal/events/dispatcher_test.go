package events

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		panic("handler bug")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "third")
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	if err == nil {
		t.Fatal("expected joined handler error")
	}
	if !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "panic: handler bug") {
		t.Fatalf("err = %v", err)
	}
	if strings.Join(calls, ",") != "first,second,third" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDispatcherWithoutListeners(t *testing.T) {
	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventCommentAdded}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
