package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSumLines_UsesCapturedUnitPrice(t *testing.T) {
	p1 := Product{ID: 1, Name: "Mug", Price: decimal.RequireFromString("100.00")}
	p2 := Product{ID: 2, Name: "Tee", Price: decimal.RequireFromString("19.99")}
	lines := []OrderLine{NewOrderLine(p1, 2), NewOrderLine(p2, 3)}

	// later catalog price changes must not leak into the captured lines
	p1.Price = decimal.RequireFromString("150.00")

	assert.True(t, decimal.RequireFromString("259.97").Equal(SumLines(lines)))
	assert.True(t, decimal.RequireFromString("200").Equal(lines[0].LineTotal))
}

func TestPaymentMethod(t *testing.T) {
	assert.Equal(t, OrderPendingPayment, PaymentGateway.InitialStatus())
	assert.Equal(t, OrderPendingProcessing, PaymentCOD.InitialStatus())
	assert.True(t, PaymentCOD.DecrementsAtCreation())
	assert.False(t, PaymentGateway.DecrementsAtCreation())
	assert.False(t, PaymentMethod("CARD").Valid())
}

func TestAppendNote_KeepsHistory(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	note := AppendNote("", "confirmed", at)
	assert.Equal(t, "[2026-01-02T03:04:05Z] confirmed", note)

	note = AppendNote(note, "packed", at.Add(time.Hour))
	assert.Equal(t, "[2026-01-02T03:04:05Z] confirmed\n[2026-01-02T04:04:05Z] packed", note)
}

func TestStockError_MatchesEveryContainedKind(t *testing.T) {
	err := error(&StockError{Violations: []StockViolation{
		{Kind: ViolationUnavailable, ProductID: 1, ProductName: "Mug"},
		{Kind: ViolationInsufficient, ProductID: 2, ProductName: "Tee", Requested: 10, Available: 3},
	}})

	assert.True(t, errors.Is(err, ErrProductUnavailable))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrEmptyCart))
	assert.Contains(t, err.Error(), "Tee: requested 10, available 3")
}

func TestTransitionError(t *testing.T) {
	err := error(&TransitionError{Action: ActionPack, Actual: OrderShipping, Allowed: []OrderStatus{OrderConfirmed}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "cannot pack order in status SHIPPING")
	assert.Contains(t, err.Error(), "CONFIRMED")
}
