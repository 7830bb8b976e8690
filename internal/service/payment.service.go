package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-pipeline/internal/database"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/infrastructure/payment"
	"order-pipeline/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxTxnRefAttempts bounds how often a reference is re-derived after colliding with one
// already recorded.
const maxTxnRefAttempts = 3

type PaymentURLInput struct {
	OrderID  int64
	Amount   decimal.Decimal
	BankCode string
	Language string
	ClientIP string
}

type PaymentURL struct {
	URL       string
	OrderID   int64
	OrderCode string
	Amount    decimal.Decimal
	TxnRef    string
}

type PaymentService interface {
	// BuildPaymentURL signs a gateway redirect for an order that is still awaiting payment.
	BuildPaymentURL(ctx context.Context, in PaymentURLInput) (*PaymentURL, error)
	// Reconcile applies one gateway callback. Both the browser return and the webhook call it.
	Reconcile(ctx context.Context, params map[string]string) (*ReconciliationOutcome, error)
}

type paymentService struct {
	tx          database.TxRunner
	orderRepo   repo.OrderRepo
	productRepo repo.ProductRepo
	paymentRepo repo.PaymentRepo
	gateway     *payment.Gateway
	publisher   events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewPaymentService(
	tx database.TxRunner,
	orderRepo repo.OrderRepo,
	productRepo repo.ProductRepo,
	paymentRepo repo.PaymentRepo,
	gateway *payment.Gateway,
	publisher events.Publisher,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		tx:          tx,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

func (s *paymentService) BuildPaymentURL(ctx context.Context, in PaymentURLInput) (*PaymentURL, error) {
	order, err := s.orderRepo.FindById(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderPendingPayment {
		return nil, domain.ErrOrderNotPayable
	}
	if !in.Amount.Equal(order.Total) {
		return nil, domain.ErrAmountMismatch
	}

	now := s.now()
	// The gateway keeps the redirect payable for payment.ExpiryWindow; the expiry sweep
	// must not cancel the order underneath it.
	payable, err := s.orderRepo.ExtendPaymentWindow(ctx, order.ID, now)
	if err != nil {
		return nil, err
	}
	if !payable {
		return nil, domain.ErrOrderNotPayable
	}

	var redirect *payment.Redirect
	for attempt := 0; ; attempt++ {
		at := now.Add(time.Duration(attempt) * time.Millisecond)
		redirect, err = s.gateway.BuildRedirect(payment.RedirectRequest{
			OrderCode: order.Code,
			Amount:    order.Total,
			BankCode:  in.BankCode,
			Language:  in.Language,
			ClientIP:  in.ClientIP,
			Now:       at,
		})
		if err != nil {
			return nil, err
		}

		err = s.paymentRepo.CreatePayment(ctx, &domain.Payment{
			ID:        uuid.New(),
			OrderID:   order.ID,
			TxnRef:    redirect.TxnRef,
			Amount:    order.Total,
			BankCode:  in.BankCode,
			Status:    domain.PaymentInitiated,
			CreatedAt: at,
			UpdatedAt: at,
		})
		if !errors.Is(err, repo.ErrDuplicate) {
			break
		}
		// Another request for this order took the same reference.
		if attempt+1 == maxTxnRefAttempts {
			return nil, fmt.Errorf("allocate transaction reference for %s: %w", order.Code, err)
		}
	}
	if err != nil {
		// The callback upserts the attempt by reference, so a missing row is recovered later.
		s.log.Warn("payment attempt not recorded",
			zap.String("order_code", order.Code),
			zap.String("txn_ref", redirect.TxnRef),
			zap.Error(err),
		)
	}

	return &PaymentURL{
		URL:       redirect.URL,
		OrderID:   order.ID,
		OrderCode: order.Code,
		Amount:    order.Total,
		TxnRef:    redirect.TxnRef,
	}, nil
}
