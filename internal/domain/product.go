package domain

import "github.com/shopspring/decimal"

// Product is the slice of a catalog record the order pipeline reads and whose stock it mutates.
type Product struct {
	ID       int64
	Name     string
	ImageURL string
	Price    decimal.Decimal
	Stock    int
	Enabled  bool
}
