package domain

import "github.com/shopspring/decimal"

const (
	TopicOrderEvents   = "order_events"
	TopicCartEvents    = "cart_events"
	TopicProductEvents = "product_events"

	EventOrderPlaced    = "OrderPlaced"
	EventCartExpired    = "CartExpired"
	EventProductUpdated = "ProductUpdated"
	EventProductDeleted = "ProductDeleted"
)

// EventEnvelope is the wire shape of every message on the shop topics.
type EventEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type EventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type OrderPlacedEvent struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Email       string          `json:"email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []EventItem     `json:"items"`
}

type CartExpiredEvent struct {
	CartID int64       `json:"cart_id"`
	UserID int64       `json:"user_id"`
	Items  []EventItem `json:"items"`
}

type ProductChangedEvent struct {
	ProductID int64 `json:"product_id"`
}
