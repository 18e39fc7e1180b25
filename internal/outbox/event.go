package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
)

type Event struct {
	ID            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// NewEvent wraps payload in the shop envelope, ready to be saved next to
// the business rows it describes.
func NewEvent(topic, aggregateType string, aggregateID int64, eventType string, payload any) (*Event, error) {
	body, err := json.Marshal(domain.EventEnvelope{
		Event:   eventType,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", eventType, err)
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   fmt.Sprintf("%d", aggregateID),
		EventType:     eventType,
		Payload:       body,
		Topic:         topic,
	}, nil
}
