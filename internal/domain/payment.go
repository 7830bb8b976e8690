package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INIT"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment is one attempt to settle an order through the gateway, keyed by its
// transaction reference.
type Payment struct {
	ID           uuid.UUID
	OrderID      int64
	TxnRef       string
	Amount       decimal.Decimal
	BankCode     string
	GatewayTxnNo string
	ResponseCode string
	PayDate      string
	Status       PaymentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
