package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/kafka"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"go.uber.org/zap"
)

// Invalidator drops cached products.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64) error
}

// Consumer keeps the product cache honest: any event that changes a
// product's row evicts it.
type Consumer struct {
	cache  Invalidator
	logger *zap.Logger
}

func NewConsumer(cache Invalidator, logger *zap.Logger) *Consumer {
	return &Consumer{
		cache:  cache,
		logger: logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{domain.TopicProductEvents, domain.TopicCartEvents},
		c.ProcessMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

type eventWrapper struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ProcessMessage handles one record. Malformed records are logged and
// acknowledged; only cache failures are returned so the record is retried.
func (c *Consumer) ProcessMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	var wrapper eventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return nil
	}

	var ids []int64

	switch wrapper.Event {
	case domain.EventProductUpdated, domain.EventProductDeleted:
		var event domain.ProductChangedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return nil
		}

		ids = append(ids, event.ProductID)
	case domain.EventCartExpired:
		var event domain.CartExpiredEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return nil
		}

		for _, item := range event.Items {
			ids = append(ids, item.ProductID)
		}
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
		return nil
	}

	if err := c.cache.Invalidate(ctx, ids...); err != nil {
		mylogger.Warn(ctx, c.logger, "Error invalidating product cache", zap.Error(err))
		return err
	}

	return nil
}
