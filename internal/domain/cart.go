package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	Email      string          `db:"email"`
	TotalPrice decimal.Decimal `db:"total_price"`
	Items      []CartItem      `db:"items"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// CartItem holds the price and discount captured when the line was added
// or last adjusted, not the live catalog values.
type CartItem struct {
	ID           int64           `db:"id"`
	CartID       int64           `db:"cart_id"`
	ProductID    int64           `db:"product_id"`
	ProductName  string          `db:"product_name"`
	Quantity     int64           `db:"quantity"`
	ProductPrice decimal.Decimal `db:"product_price"`
	Discount     decimal.Decimal `db:"discount"`
}

func (i *CartItem) SpecialPrice() decimal.Decimal {
	return SpecialPrice(i.ProductPrice, i.Discount)
}

func (i *CartItem) LineTotal() decimal.Decimal {
	return i.SpecialPrice().Mul(decimal.NewFromInt(i.Quantity))
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) FindItem(productID int64) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}

	return nil, false
}

func (c *Cart) CalculateTotal() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.TotalPrice = total
}

type CartItemView struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Discount     decimal.Decimal `json:"discount"`
	SpecialPrice decimal.Decimal `json:"special_price"`
}

type CartView struct {
	CartID     int64           `json:"cart_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Products   []CartItemView  `json:"products"`
}

func (c *Cart) ToView() *CartView {
	products := make([]CartItemView, 0, len(c.Items))
	for _, item := range c.Items {
		products = append(products, CartItemView{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			Price:        item.ProductPrice,
			Discount:     item.Discount,
			SpecialPrice: item.SpecialPrice(),
		})
	}

	return &CartView{
		CartID:     c.ID,
		TotalPrice: c.TotalPrice,
		Products:   products,
	}
}
