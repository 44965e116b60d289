package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

func TestNotificationServiceLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "desk@example.com",
		WebhookURL: "https://hooks.example.com/desk",
	})
	svc.RegisterHandlers()

	ctx := context.Background()
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketUpdated} {
		if err := dispatcher.Publish(ctx, events.Event{Type: et, TicketID: "t1"}); err != nil {
			t.Fatalf("Publish %s: %v", et, err)
		}
	}

	if n := logs.FilterMessage("TicketCreated").Len(); n != 1 {
		t.Fatalf("TicketCreated logged %d times", n)
	}
	if n := logs.FilterMessage("sendWebhookNotificationStub").Len(); n != 1 {
		t.Fatalf("webhook stub logged %d times", n)
	}
	if n := logs.FilterMessage("sendEmailNotificationStub").Len(); n != 2 {
		t.Fatalf("email stub logged %d times", n)
	}
	// ticket_updated has no subscriber
	if n := logs.Len(); n != 5 {
		t.Fatalf("logged %d entries, want 5", n)
	}
}

func TestNotificationStubsNeedConfig(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	if err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventCommentAdded, TicketID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if logs.Len() != 1 || logs.All()[0].Message != "CommentAdded" {
		t.Fatalf("entries = %v", logs.All())
	}
}
