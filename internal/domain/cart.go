package domain

import "github.com/shopspring/decimal"

type Cart struct {
	ID      int64
	OwnerID string
	Lines   []CartLine
}

// CartLine carries the product as it is at load time; CachedPrice is what the cart
// displayed and is never used for totals.
type CartLine struct {
	ID          int64
	CartID      int64
	ProductID   int64
	Quantity    int
	CachedPrice decimal.Decimal
	Product     Product
}
