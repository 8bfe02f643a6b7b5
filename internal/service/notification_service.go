package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
	"github.com/noah-isme/facility-workorder-api/pkg/jobs"
)

const notificationJobType = "team_notification"

type notificationPublisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// NotificationConfig tunes the dispatch queue.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService dispatches team notifications asynchronously. Delivery
// is best effort and never blocks the caller.
type NotificationService struct {
	publisher notificationPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	enabled   bool
}

// NewNotificationService wires the publisher behind a worker queue.
func NewNotificationService(publisher notificationPublisher, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		enabled:   cfg.Enabled && publisher != nil,
	}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:     cfg.Workers,
		BufferSize:  cfg.BufferSize,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
		OnExhausted: svc.exhausted,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Notify queues a notification for the team. A NOTIFICATION_ERROR is returned
// when the notification cannot be queued; callers log it and carry on.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if s == nil || !s.enabled {
		return nil
	}
	if n.TeamID == "" {
		return appErrors.Clone(appErrors.ErrNotification, "notification has no team")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: notificationJobType, Payload: n}); err != nil {
		s.metrics.RecordNotification(n.Event, false)
		return appErrors.Wrap(err, appErrors.ErrNotification.Code, appErrors.ErrNotification.Status, "failed to queue notification")
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		return err
	}
	s.metrics.RecordNotification(n.Event, true)
	s.logger.Debug("notification published",
		zap.String("event", string(n.Event)),
		zap.String("team_id", n.TeamID),
		zap.String("work_order_id", n.WorkOrderID))
	return nil
}

func (s *NotificationService) exhausted(job jobs.Job, err error) {
	var event models.NotificationEvent
	if n, ok := job.Payload.(models.Notification); ok {
		event = n.Event
	}
	s.metrics.RecordNotification(event, false)
	s.logger.Error("notification dropped",
		zap.String("job_id", job.ID),
		zap.String("event", string(event)),
		zap.Error(err))
}
