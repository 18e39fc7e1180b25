package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const HeaderMessageID = "message_id"

type Producer interface {
	ProduceMessage(ctx context.Context, topic, key string, message any) error
	Close() error
}

type producer struct {
	syncProducer sarama.SyncProducer
	cb           *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}

	return &producer{
		syncProducer: p,
		cb:           utils.NewBreaker("KafkaProducer", logger),
		logger:       logger,
	}, nil
}

// ProduceMessage marshals message to JSON and sends it synchronously with
// the trace context of ctx injected into the record headers. Records with
// the same key land on the same partition.
func (p *producer) ProduceMessage(ctx context.Context, topic, key string, message any) error {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier)+1)
	headers = append(headers, sarama.RecordHeader{
		Key:   []byte(HeaderMessageID),
		Value: []byte(uuid.NewString()),
	})
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(jsonMsg),
		Headers: headers,
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	type sent struct {
		partition int32
		offset    int64
	}

	res, err := utils.ExecuteWithBreaker(p.cb, func() (sent, error) {
		partition, offset, err := p.syncProducer.SendMessage(msg)
		return sent{partition: partition, offset: offset}, err
	})
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Message sent",
		zap.String("topic", topic),
		zap.Int32("partition", res.partition),
		zap.Int64("offset", res.offset),
	)

	return nil
}

func (p *producer) Close() error {
	return p.syncProducer.Close()
}
