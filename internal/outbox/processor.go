package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakashimaa/go-pet-project/shop/internal/db"
	"github.com/sakashimaa/go-pet-project/shop/internal/metrics"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Publisher interface {
	ProduceMessage(ctx context.Context, topic, key string, message any) error
}

// Processor relays committed outbox rows to Kafka. Delivery is at least
// once: a crash between send and commit republishes the batch, and every
// message carries event_id for deduplication downstream.
type Processor struct {
	pool      db.TxBeginner
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewProcessor(
	pool db.TxBeginner,
	repo Repository,
	publisher Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	batchSize int,
	interval time.Duration,
) *Processor {
	return &Processor{
		pool:      pool,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox-processor"),
	}
}

func (p *Processor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				mylogger.Error(ctx, p.logger, "Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were sent.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, p.logger)

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	mylogger.Debug(ctx, p.logger, "Processing outbox events", zap.Int("count", len(events)))

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.metrics.OutboxPublished.WithLabelValues(metrics.ResultError).Inc()

			mylogger.Warn(
				ctx,
				p.logger,
				"Outbox event publish failed",
				zap.Int64("id", event.ID),
				zap.String("topic", event.Topic),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				return published, dbErr
			}
			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.ID); err != nil {
			return published, err
		}

		p.metrics.OutboxPublished.WithLabelValues(metrics.ResultOK).Inc()
		published++
	}

	span.SetAttributes(attribute.Int("published", published))

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	return published, nil
}

func (p *Processor) publish(ctx context.Context, event *Event) error {
	var message map[string]any
	if err := json.Unmarshal(event.Payload, &message); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	message["event_id"] = event.ID

	return p.publisher.ProduceMessage(ctx, event.Topic, event.AggregateID, message)
}
