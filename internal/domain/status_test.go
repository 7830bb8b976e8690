package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions_HappyPathIsLinear(t *testing.T) {
	path := []struct {
		action Action
		from   OrderStatus
		to     OrderStatus
	}{
		{ActionConfirm, OrderPendingProcessing, OrderConfirmed},
		{ActionPack, OrderConfirmed, OrderPacking},
		{ActionReadyToShip, OrderPacking, OrderReadyToShip},
		{ActionShip, OrderReadyToShip, OrderShipping},
		{ActionDeliver, OrderShipping, OrderDelivered},
		{ActionComplete, OrderDelivered, OrderCompleted},
	}

	for _, step := range path {
		tr, ok := LookupTransition(step.action)
		assert.True(t, ok, step.action)
		assert.True(t, tr.Allows(step.from), "%s from %s", step.action, step.from)
		assert.Equal(t, step.to, tr.To)
	}
}

func TestTransitions_DeliveryFailedLoopsBackToShipping(t *testing.T) {
	failed := Transitions[ActionDeliveryFailed]
	assert.True(t, failed.Allows(OrderShipping))
	assert.Equal(t, OrderDeliveryFailed, failed.To)

	ship := Transitions[ActionShip]
	assert.True(t, ship.Allows(OrderDeliveryFailed))
}

func TestTransitions_CancelOnlyFromPendingStates(t *testing.T) {
	cancel := Transitions[ActionCancel]
	assert.True(t, cancel.Allows(OrderPendingPayment))
	assert.True(t, cancel.Allows(OrderPendingProcessing))

	for _, s := range []OrderStatus{OrderPaid, OrderConfirmed, OrderPacking, OrderReadyToShip, OrderShipping,
		OrderDeliveryFailed, OrderDelivered, OrderCompleted, OrderCancelled} {
		assert.False(t, cancel.Allows(s), s)
	}
}

func TestLookupTransition_Unknown(t *testing.T) {
	_, ok := LookupTransition("refund")
	assert.False(t, ok)
}

func TestOrderStatus_Flags(t *testing.T) {
	assert.True(t, OrderPendingProcessing.StockCommitted())
	assert.False(t, OrderPendingPayment.StockCommitted())
	assert.False(t, OrderPendingPayment.PaymentSettled())
	assert.True(t, OrderPaid.PaymentSettled())
	assert.True(t, OrderCancelled.PaymentSettled())
}
