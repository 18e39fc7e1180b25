package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	StockQuantity int64           `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"-"`
}

// SpecialPrice is the unit price after the discount percentage is applied.
func (p *Product) SpecialPrice() decimal.Decimal {
	return SpecialPrice(p.Price, p.Discount)
}

func (p *Product) IsAvailable() bool {
	return p.DeletedAt == nil && p.StockQuantity > 0
}

func SpecialPrice(price, discount decimal.Decimal) decimal.Decimal {
	return price.Sub(price.Mul(discount).Div(hundred)).Round(2)
}
