package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusAccepted OrderStatus = "Order Accepted"
)

type Order struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Email       string          `db:"email"`
	OrderDate   time.Time       `db:"order_date"`
	Status      OrderStatus     `db:"status"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	AddressID   int64           `db:"address_id"`
	PaymentID   int64           `db:"payment_id"`
	Payment     *Payment        `db:"payment"`
	Items       []OrderItem     `db:"items"`
}

type OrderItem struct {
	ID           int64           `db:"id"`
	OrderID      int64           `db:"order_id"`
	ProductID    int64           `db:"product_id"`
	ProductName  string          `db:"product_name"`
	Quantity     int64           `db:"quantity"`
	Discount     decimal.Decimal `db:"discount"`
	OrderedPrice decimal.Decimal `db:"ordered_price"`
}

// Payment is the outcome of a gateway interaction that already happened
// on the caller's side. Nothing here talks to a gateway.
type Payment struct {
	ID                int64  `db:"id" json:"payment_id"`
	PaymentMethod     string `db:"payment_method" json:"payment_method"`
	PgName            string `db:"pg_name" json:"pg_name"`
	PgPaymentID       string `db:"pg_payment_id" json:"pg_payment_id"`
	PgStatus          string `db:"pg_status" json:"pg_status"`
	PgResponseMessage string `db:"pg_response_message" json:"pg_response_message"`
}

type PlaceOrderInput struct {
	AddressID         int64
	PaymentMethod     string
	PgName            string
	PgPaymentID       string
	PgStatus          string
	PgResponseMessage string
}

// OrderItemFromCart snapshots a cart line. The ordered price is the
// discounted unit price the customer saw in the cart.
func OrderItemFromCart(item CartItem) OrderItem {
	return OrderItem{
		ProductID:    item.ProductID,
		ProductName:  item.ProductName,
		Quantity:     item.Quantity,
		Discount:     item.Discount,
		OrderedPrice: item.SpecialPrice(),
	}
}

type OrderItemView struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	Discount     decimal.Decimal `json:"discount"`
	OrderedPrice decimal.Decimal `json:"ordered_product_price"`
}

type OrderView struct {
	OrderID     int64           `json:"order_id"`
	Email       string          `json:"email"`
	OrderDate   time.Time       `json:"order_date"`
	Status      OrderStatus     `json:"order_status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AddressID   int64           `json:"address_id"`
	Payment     *Payment        `json:"payment,omitempty"`
	OrderItems  []OrderItemView `json:"order_items"`
}

func (o *Order) ToView() *OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemView{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			Discount:     item.Discount,
			OrderedPrice: item.OrderedPrice,
		})
	}

	return &OrderView{
		OrderID:     o.ID,
		Email:       o.Email,
		OrderDate:   o.OrderDate,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		AddressID:   o.AddressID,
		Payment:     o.Payment,
		OrderItems:  items,
	}
}
