package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/tracker-service/internal/config"
	"github.com/spec-kit/tracker-service/internal/events"
	"github.com/spec-kit/tracker-service/internal/repository"
)

// NotificationService fans committed domain events out to notification
// channels. Recipient resolution uses the ticket's watcher set; delivery
// itself is stubbed behind the configured endpoints.
type NotificationService struct {
	dispatcher events.Dispatcher
	watchers   repository.WatcherRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, watchers repository.WatcherRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		watchers:   watchers,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketLinked, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTaskSpawned, n.handleTaskEvent)
	n.dispatcher.Subscribe(events.EventTaskClosed, n.handleTaskEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	recipients := n.resolveWatchers(ctx, event.SubjectID)
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.SubjectID),
		zap.Int("watchers", len(recipients)),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(event, recipients)
	n.sendWebhookNotificationStub(event)
	return nil
}

func (n *NotificationService) handleTaskEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("task event",
		zap.String("event_type", string(event.Type)),
		zap.String("task_id", event.SubjectID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(event)
	return nil
}

func (n *NotificationService) resolveWatchers(ctx context.Context, ticketID string) []string {
	if n.watchers == nil {
		return nil
	}
	watchers, err := n.watchers.ListByTicket(ctx, ticketID)
	if err != nil {
		n.logger.Warn("watcher lookup failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(watchers))
	for _, w := range watchers {
		ids = append(ids, w.UserID)
	}
	return ids
}

func (n *NotificationService) sendEmailNotificationStub(event events.Event, recipients []string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Strings("recipients", recipients),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
