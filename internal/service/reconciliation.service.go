package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/infrastructure/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeAlreadyProcessed OutcomeKind = "alreadyProcessed"
	OutcomeOutOfStock       OutcomeKind = "outOfStock"
	OutcomeCancelled        OutcomeKind = "cancelled"
	// OutcomePaidAfterCancel is money captured for an order that was cancelled first. It is
	// recorded for refund; the order stays cancelled.
	OutcomePaidAfterCancel OutcomeKind = "paidAfterCancel"
)

// ReconciliationOutcome carries what either transport needs to answer the caller.
type ReconciliationOutcome struct {
	Kind         OutcomeKind
	OrderID      int64
	OrderCode    string
	OwnerID      string
	Amount       decimal.Decimal
	Status       domain.OrderStatus
	TxnRef       string
	ResponseCode string
	Reason       string
	Shortfalls   []domain.StockViolation
}

func (s *paymentService) Reconcile(ctx context.Context, params map[string]string) (*ReconciliationOutcome, error) {
	// Nothing in params is trusted, or read, before the signature checks out.
	if !s.gateway.VerifyCallback(params) {
		return nil, domain.ErrInvalidSignature
	}
	cb, err := s.gateway.ParseCallback(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTxnRef, err)
	}

	now := s.now()
	var (
		out   *ReconciliationOutcome
		order *domain.Order
	)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.orderRepo.FindByCodeTx(ctx, tx, cb.OrderCode)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !cb.Amount.Equal(order.Total) {
			return domain.ErrAmountMismatch
		}

		out = &ReconciliationOutcome{
			OrderID:      order.ID,
			OrderCode:    order.Code,
			OwnerID:      order.OwnerID,
			Amount:       order.Total,
			Status:       order.Status,
			TxnRef:       cb.TxnRef,
			ResponseCode: cb.ResponseCode,
			Reason:       payment.Reason(cb.ResponseCode),
		}
		if order.Status.PaymentSettled() {
			out.Kind = OutcomeAlreadyProcessed
			if cb.Succeeded() && order.Status == domain.OrderCancelled {
				return s.recordLatePayment(ctx, tx, order, cb, now, out)
			}
			return nil
		}

		if cb.Succeeded() {
			return s.applySuccess(ctx, tx, order, cb, now, out)
		}
		return s.applyFailure(ctx, tx, order, cb, now, out)
	})

	var shortage *domain.StockError
	if errors.As(err, &shortage) {
		return s.cancelOutOfStock(ctx, order, cb, shortage, now, out)
	}
	if err != nil {
		return nil, err
	}

	s.announce(ctx, order, out)
	return out, nil
}

// applySuccess claims the order for this callback, then takes stock for every line.
// A shortfall is returned as *domain.StockError so the whole claim rolls back.
func (s *paymentService) applySuccess(ctx context.Context, tx *sql.Tx, order *domain.Order, cb payment.Callback, now time.Time, out *ReconciliationOutcome) error {
	note := fmt.Sprintf("payment confirmed: gateway txn %s, bank %s, ref %s", cb.GatewayTxnNo, cb.BankCode, cb.TxnRef)
	claimed, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, order.ID,
		[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderPaid, note, now)
	if err != nil {
		return err
	}
	if !claimed {
		out.Kind = OutcomeAlreadyProcessed
		return nil
	}

	ids := make([]int64, len(order.Lines))
	for i, l := range order.Lines {
		ids[i] = l.ProductID
	}
	locked, err := s.productRepo.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return err
	}

	var violations []domain.StockViolation
	for _, l := range order.Lines {
		p := locked[l.ProductID]
		if p.Stock < l.Quantity {
			violations = append(violations, domain.StockViolation{
				Kind:        domain.ViolationInsufficient,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Requested:   l.Quantity,
				Available:   p.Stock,
			})
		}
	}
	if len(violations) > 0 {
		return &domain.StockError{Violations: violations}
	}

	for _, l := range order.Lines {
		if err := s.productRepo.Decrement(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}

	if err := s.paymentRepo.RecordOutcome(ctx, tx, paymentRecord(order, cb, domain.PaymentSucceeded, now)); err != nil {
		return err
	}

	order.Status = domain.OrderPaid
	out.Kind = OutcomeSuccess
	out.Status = domain.OrderPaid
	return nil
}

// applyFailure cancels the order. Gateway orders hold no stock before payment, so none is restored.
func (s *paymentService) applyFailure(ctx context.Context, tx *sql.Tx, order *domain.Order, cb payment.Callback, now time.Time, out *ReconciliationOutcome) error {
	note := fmt.Sprintf("payment failed: code %s (%s), ref %s", cb.ResponseCode, payment.Reason(cb.ResponseCode), cb.TxnRef)
	cancelled, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, order.ID,
		[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderCancelled, note, now)
	if err != nil {
		return err
	}
	if !cancelled {
		out.Kind = OutcomeAlreadyProcessed
		return nil
	}

	if err := s.paymentRepo.RecordOutcome(ctx, tx, paymentRecord(order, cb, domain.PaymentFailed, now)); err != nil {
		return err
	}

	order.Status = domain.OrderCancelled
	out.Kind = OutcomeCancelled
	out.Status = domain.OrderCancelled
	return nil
}

// recordLatePayment leaves a trace of a payment the gateway captured after the order was
// cancelled, so it can be refunded. Stock and status stay as they are. A repeated callback
// finds the attempt already SUCCEEDED and changes nothing.
func (s *paymentService) recordLatePayment(ctx context.Context, tx *sql.Tx, order *domain.Order, cb payment.Callback, now time.Time, out *ReconciliationOutcome) error {
	prior, err := s.paymentRepo.FindByTxnRef(ctx, tx, cb.TxnRef)
	if err != nil {
		return err
	}
	if prior != nil && prior.Status == domain.PaymentSucceeded {
		return nil
	}

	note := fmt.Sprintf("payment received after cancellation: gateway txn %s, bank %s, ref %s, refund required",
		cb.GatewayTxnNo, cb.BankCode, cb.TxnRef)
	if _, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, order.ID,
		[]domain.OrderStatus{domain.OrderCancelled}, domain.OrderCancelled, note, now); err != nil {
		return err
	}
	if err := s.paymentRepo.RecordOutcome(ctx, tx, paymentRecord(order, cb, domain.PaymentSucceeded, now)); err != nil {
		return err
	}

	s.log.Warn("payment captured for a cancelled order, refund required",
		zap.String("order_code", order.Code),
		zap.String("txn_ref", cb.TxnRef),
		zap.String("gateway_txn_no", cb.GatewayTxnNo),
	)
	out.Kind = OutcomePaidAfterCancel
	return nil
}

// cancelOutOfStock runs after the paid claim rolled back. The cancellation lives in its own
// transaction so it survives that rollback.
func (s *paymentService) cancelOutOfStock(ctx context.Context, order *domain.Order, cb payment.Callback, shortage *domain.StockError, now time.Time, out *ReconciliationOutcome) (*ReconciliationOutcome, error) {
	short := make([]string, len(shortage.Violations))
	for i, v := range shortage.Violations {
		short[i] = fmt.Sprintf("%s (requested %d, available %d)", v.ProductName, v.Requested, v.Available)
	}
	note := fmt.Sprintf("paid but cancelled, out of stock: %s; gateway txn %s, ref %s, refund required",
		strings.Join(short, "; "), cb.GatewayTxnNo, cb.TxnRef)

	out.Shortfalls = shortage.Violations
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cancelled, err := s.orderRepo.UpdateStatusIfCurrent(ctx, tx, order.ID,
			[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderCancelled, note, now)
		if err != nil {
			return err
		}
		if !cancelled {
			out.Kind = OutcomeAlreadyProcessed
			return nil
		}
		if err := s.paymentRepo.RecordOutcome(ctx, tx, paymentRecord(order, cb, domain.PaymentSucceeded, now)); err != nil {
			return err
		}
		order.Status = domain.OrderCancelled
		out.Kind = OutcomeOutOfStock
		out.Status = domain.OrderCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("paid order cancelled for lack of stock",
		zap.String("order_code", order.Code),
		zap.String("txn_ref", cb.TxnRef),
		zap.Int("short_lines", len(shortage.Violations)),
	)
	s.announce(ctx, order, out)
	return out, nil
}

func (s *paymentService) announce(ctx context.Context, order *domain.Order, out *ReconciliationOutcome) {
	switch out.Kind {
	case OutcomeSuccess:
		publishOrderEvent(ctx, s.publisher, s.log, events.TopicOrderPaid, order, domain.OrderPendingPayment)
	case OutcomeCancelled, OutcomeOutOfStock:
		publishOrderEvent(ctx, s.publisher, s.log, events.TopicOrderCancelled, order, domain.OrderPendingPayment)
	}
}

func paymentRecord(order *domain.Order, cb payment.Callback, status domain.PaymentStatus, now time.Time) *domain.Payment {
	return &domain.Payment{
		ID:           uuid.New(),
		OrderID:      order.ID,
		TxnRef:       cb.TxnRef,
		Amount:       cb.Amount,
		BankCode:     cb.BankCode,
		GatewayTxnNo: cb.GatewayTxnNo,
		ResponseCode: cb.ResponseCode,
		PayDate:      cb.PayDate,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
