package service

import (
	"context"
	"time"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/events"

	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// OrderEvent is the payload of every order topic.
type OrderEvent struct {
	OrderID        int64  `json:"order_id"`
	Code           string `json:"code"`
	OwnerID        string `json:"owner_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	PaymentMethod  string `json:"payment_method"`
	Total          string `json:"total"`
}

// publishOrderEvent is best effort: the state change it announces is already committed.
func publishOrderEvent(ctx context.Context, pub events.Publisher, log *zap.Logger, topic string, order *domain.Order, prev domain.OrderStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := OrderEvent{
		OrderID:        order.ID,
		Code:           order.Code,
		OwnerID:        order.OwnerID,
		Status:         string(order.Status),
		PreviousStatus: string(prev),
		PaymentMethod:  string(order.PaymentMethod),
		Total:          order.Total.StringFixed(2),
	}
	if err := pub.Publish(ctx, topic, order.Code, evt); err != nil {
		log.Warn("order event not published",
			zap.String("topic", topic),
			zap.String("order_code", order.Code),
			zap.Error(err),
		)
	}
}
