package domain

import "slices"

type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionPack           Action = "pack"
	ActionReadyToShip    Action = "ready"
	ActionShip           Action = "ship"
	ActionDeliver        Action = "deliver"
	ActionDeliveryFailed Action = "delivery-failed"
	ActionComplete       Action = "complete"
	ActionCancel         Action = "cancel"
)

type Transition struct {
	From []OrderStatus
	To   OrderStatus
}

// Transitions is the fulfillment state machine. Forward only, except Shipping and
// DeliveryFailed which loop while a parcel is re-shipped.
var Transitions = map[Action]Transition{
	ActionConfirm:        {From: []OrderStatus{OrderPendingProcessing, OrderPaid}, To: OrderConfirmed},
	ActionPack:           {From: []OrderStatus{OrderConfirmed}, To: OrderPacking},
	ActionReadyToShip:    {From: []OrderStatus{OrderPacking}, To: OrderReadyToShip},
	ActionShip:           {From: []OrderStatus{OrderReadyToShip, OrderDeliveryFailed}, To: OrderShipping},
	ActionDeliver:        {From: []OrderStatus{OrderShipping}, To: OrderDelivered},
	ActionDeliveryFailed: {From: []OrderStatus{OrderShipping}, To: OrderDeliveryFailed},
	ActionComplete:       {From: []OrderStatus{OrderDelivered}, To: OrderCompleted},
	ActionCancel:         {From: []OrderStatus{OrderPendingPayment, OrderPendingProcessing}, To: OrderCancelled},
}

func (t Transition) Allows(current OrderStatus) bool {
	return slices.Contains(t.From, current)
}

// LookupTransition returns the transition for an action, or false for unknown actions.
func LookupTransition(a Action) (Transition, bool) {
	t, ok := Transitions[a]
	return t, ok
}
