package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

type notifyChannel int

const (
	channelEmail notifyChannel = iota
	channelWebhook
)

// notificationRoutes lists, per event, where a notification would go.
// Events missing here are not announced.
var notificationRoutes = []struct {
	event    events.EventType
	label    string
	channels []notifyChannel
}{
	{events.EventTicketCreated, "TicketCreated", []notifyChannel{channelEmail, channelWebhook}},
	{events.EventTicketStatusChanged, "TicketStatusChanged", []notifyChannel{channelWebhook}},
	{events.EventTicketAssigned, "TicketAssigned", []notifyChannel{channelEmail}},
	{events.EventTicketDeleted, "TicketDeleted", []notifyChannel{channelWebhook}},
	{events.EventCommentAdded, "CommentAdded", []notifyChannel{channelEmail}},
}

// NotificationService announces ticket and comment events. Delivery is
// stubbed: each notification is logged at debug level against the
// configured sender address or webhook URL.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every routed event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, route := range notificationRoutes {
		label, channels := route.label, route.channels
		n.dispatcher.Subscribe(route.event, func(ctx context.Context, event events.Event) error {
			n.announce(ctx, label, channels, event)
			return nil
		})
	}
}

func (n *NotificationService) announce(ctx context.Context, label string, channels []notifyChannel, event events.Event) {
	n.logger.Info(label,
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("by", event.Actor.Username),
		zap.Any("payload", event.Payload))
	for _, ch := range channels {
		switch ch {
		case channelEmail:
			n.sendEmailNotificationStub(ctx, event)
		case channelWebhook:
			n.sendWebhookNotificationStub(ctx, event)
		}
	}
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
