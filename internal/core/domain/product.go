package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is catalog data, read-only to the core. Stock is mutated only
// through the inventory ledger.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Brand         string
	Model         string
	Price         decimal.Decimal
	StockQuantity int
	Active        bool
	CategoryID    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}
