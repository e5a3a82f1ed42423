package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type delivery string

const (
	deliveryPublished    delivery = metrics.DeliveryPublished
	deliveryRetried      delivery = metrics.DeliveryRetried
	deliveryDeadLettered delivery = metrics.DeliveryDeadLettered
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type deliveryRecorder interface {
	Delivery(eventType, result string)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Outbox           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	DLQRepository    dlqRepository
	Registry         registryResolver
	Metrics          deliveryRecorder
	PublisherFactory publisherFactory
	Now              func() time.Time
}

// Service drains the outbox table onto the launch topic. Rows are claimed with
// SKIP LOCKED so several publishers can run side by side.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	dlq          dlqRepository
	registry     registryResolver
	metrics      deliveryRecorder
	publishers   publisherFactory
	now          func() time.Time
	jitter       *rand.Rand
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	publishers := params.PublisherFactory
	if publishers == nil {
		client := params.PubSub
		publishers = func(topic string) publisher {
			return wrapPublisher(client.Publisher(topic))
		}
	}
	var rec deliveryRecorder = metrics.NewOutboxMetrics(nil)
	if params.Metrics != nil {
		rec = params.Metrics
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		dlq:          params.DLQRepository,
		registry:     params.Registry,
		metrics:      rec,
		publishers:   publishers,
		now:          now,
		jitter:       rand.New(rand.NewSource(now().UnixNano())),
		batchSize:    positiveOr(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(params.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(params.Outbox.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

// Run publishes until ctx is canceled. A full batch is followed immediately by
// the next one; an empty batch or a batch error waits before polling again.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled > 0:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}

		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// processBatch claims and delivers one batch inside a single transaction and
// reports how many rows it handled.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	handled := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			result, err := s.deliver(ctx, tx, event)
			if err != nil {
				return err
			}
			s.metrics.Delivery(string(event.EventType), string(result))
			handled++
		}
		return nil
	})
	return handled, err
}

// deliver publishes one row and records the result on it. The returned error
// is reserved for bookkeeping failures that must roll the batch back.
func (s *Service) deliver(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (delivery, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outboxId":      event.ID.String(),
		"eventType":     string(event.EventType),
		"aggregateType": string(event.AggregateType),
		"aggregateId":   event.AggregateID.String(),
		"attempt":       event.AttemptCount + 1,
	})

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return deliveryDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	ctx = s.logg.WithField(ctx, "topic", resolved.Descriptor.Topic)
	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(ctx, "outbox.published")
		return deliveryPublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return deliveryDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		cause := fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, pubErr)
		return deliveryDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, cause)
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", pubErr.Error()), "outbox.publish_retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return deliveryRetried, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"version":        strconv.Itoa(resolved.Envelope.Version),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	ctx = s.logg.WithFields(ctx, map[string]any{"reason": string(reason), "error": msg})
	s.logg.Warn(ctx, "outbox.dead_lettered")

	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	d += time.Duration(s.jitter.Int63n(int64(jitterWindow)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}
