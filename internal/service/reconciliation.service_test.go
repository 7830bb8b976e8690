package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/infrastructure/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testTxnRef = "HD202610160001_1792121400000"

func (f *fixture) callback(t *testing.T, amount, code string) map[string]string {
	t.Helper()
	params, err := payment.NewSandbox(f.gateway).Settle(testTxnRef, money(amount), code, "NCB")
	require.NoError(t, err)
	return params
}

// twoLineOrder holds Mug x2 and Lamp x1, total 450.
func twoLineOrder(status domain.OrderStatus) *domain.Order {
	return orderWith(status, domain.PaymentGateway,
		domain.NewOrderLine(product(1, "Mug", "100", 0), 2),
		domain.NewOrderLine(product(2, "Lamp", "250", 0), 1),
	)
}

func TestReconcile_RejectsBadSignatureBeforeAnyRead(t *testing.T) {
	f := newFixture()
	params := f.callback(t, "450", payment.ResponseSuccess)
	params[payment.ParamAmount] = "1"

	out, err := f.paymentService().Reconcile(context.Background(), params)

	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Nil(t, out)
	assert.Zero(t, f.tx.Calls)
	f.orders.AssertNotCalled(t, "FindByCodeTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_RejectsMissingSignature(t *testing.T) {
	f := newFixture()
	params := f.callback(t, "450", payment.ResponseSuccess)
	delete(params, payment.ParamSecureHash)

	_, err := f.paymentService().Reconcile(context.Background(), params)

	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Zero(t, f.tx.Calls)
}

func TestReconcile_OrderNotFound(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(nil, nil)

	_, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestReconcile_AmountMismatch(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderPendingPayment), nil)

	_, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "449", payment.ResponseSuccess))

	require.ErrorIs(t, err, domain.ErrAmountMismatch)
	f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_AlreadySettledOrderIsNotTouched(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderPaid, domain.OrderConfirmed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(status), nil)

			out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

			require.NoError(t, err)
			assert.Equal(t, OutcomeAlreadyProcessed, out.Kind)
			assert.Equal(t, status, out.Status)
			f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.products.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReconcile_FailureOnCancelledOrderIsNotTouched(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderCancelled), nil)

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", "24"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Kind)
	f.payments.AssertNotCalled(t, "FindByTxnRef", mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "RecordOutcome", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_PaymentAfterCancellationIsRecordedForRefund(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderCancelled), nil)
	f.payments.On("FindByTxnRef", mock.Anything, mock.Anything, testTxnRef).
		Return(&domain.Payment{TxnRef: testTxnRef, Status: domain.PaymentInitiated}, nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9),
		[]domain.OrderStatus{domain.OrderCancelled}, domain.OrderCancelled,
		mock.MatchedBy(func(note string) bool {
			return strings.Contains(note, "refund required") && strings.Contains(note, testTxnRef)
		}), testNow).
		Return(true, nil).Once()
	f.payments.On("RecordOutcome", mock.Anything, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentSucceeded && p.TxnRef == testTxnRef && p.ResponseCode == payment.ResponseSuccess
	})).Return(nil).Once()

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.NoError(t, err)
	assert.Equal(t, OutcomePaidAfterCancel, out.Kind)
	assert.Equal(t, domain.OrderCancelled, out.Status)
	f.orders.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.products.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_RepeatedPaymentAfterCancellationIsRecordedOnce(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderCancelled), nil)
	f.payments.On("FindByTxnRef", mock.Anything, mock.Anything, testTxnRef).
		Return(&domain.Payment{TxnRef: testTxnRef, Status: domain.PaymentSucceeded}, nil)

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Kind)
	f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "RecordOutcome", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_SuccessTakesStockOnce(t *testing.T) {
	f := newFixture()
	order := twoLineOrder(domain.OrderPendingPayment)
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(order, nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9),
		[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderPaid,
		mock.MatchedBy(func(note string) bool { return strings.Contains(note, testTxnRef) }), testNow).
		Return(true, nil).Once()
	f.products.On("LockForUpdate", mock.Anything, mock.Anything, []int64{1, 2}).
		Return(map[int64]domain.Product{1: product(1, "Mug", "100", 5), 2: product(2, "Lamp", "250", 1)}, nil)
	f.products.On("Decrement", mock.Anything, mock.Anything, int64(1), 2).Return(nil).Once()
	f.products.On("Decrement", mock.Anything, mock.Anything, int64(2), 1).Return(nil).Once()
	f.payments.On("RecordOutcome", mock.Anything, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentSucceeded && p.TxnRef == testTxnRef && p.BankCode == "NCB" && p.GatewayTxnNo != ""
	})).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, events.TopicOrderPaid, "HD202610160001", mock.Anything).Return(nil).Once()

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, domain.OrderPaid, out.Status)
	assert.Equal(t, "HD202610160001", out.OrderCode)
	assert.True(t, money("450").Equal(out.Amount))
	assert.Equal(t, 1, f.tx.Calls)
	f.orders.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestReconcile_LosingTheClaimReportsAlreadyProcessed(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderPendingPayment), nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9), mock.Anything, domain.OrderPaid, mock.Anything, mock.Anything).
		Return(false, nil)

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Kind)
	f.products.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_ShortfallCancelsInASecondTransaction(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderPendingPayment), nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9), mock.Anything, domain.OrderPaid, mock.Anything, mock.Anything).
		Return(true, nil).Once()
	f.products.On("LockForUpdate", mock.Anything, mock.Anything, []int64{1, 2}).
		Return(map[int64]domain.Product{1: product(1, "Mug", "100", 1), 2: product(2, "Lamp", "250", 4)}, nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9),
		[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderCancelled,
		mock.MatchedBy(func(note string) bool { return strings.Contains(note, "Mug (requested 2, available 1)") }), testNow).
		Return(true, nil).Once()
	f.payments.On("RecordOutcome", mock.Anything, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentSucceeded
	})).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, events.TopicOrderCancelled, "HD202610160001", mock.Anything).Return(nil).Once()

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOutOfStock, out.Kind)
	assert.Equal(t, domain.OrderCancelled, out.Status)
	require.Len(t, out.Shortfalls, 1)
	assert.Equal(t, int64(1), out.Shortfalls[0].ProductID)
	assert.Equal(t, 2, f.tx.Calls)
	f.products.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertExpectations(t)
	f.payments.AssertExpectations(t)
}

func TestReconcile_FailureCallbackCancelsWithoutTouchingStock(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderPendingPayment), nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9),
		[]domain.OrderStatus{domain.OrderPendingPayment}, domain.OrderCancelled,
		mock.MatchedBy(func(note string) bool { return strings.Contains(note, "code 24") }), testNow).
		Return(true, nil).Once()
	f.payments.On("RecordOutcome", mock.Anything, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentFailed && p.ResponseCode == "24"
	})).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, events.TopicOrderCancelled, "HD202610160001", mock.Anything).Return(nil)

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", "24"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.Equal(t, "Payment cancelled by customer", out.Reason)
	f.products.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_StockRaceLostAborts(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByCodeTx", mock.Anything, mock.Anything, "HD202610160001").Return(twoLineOrder(domain.OrderPendingPayment), nil)
	f.orders.On("UpdateStatusIfCurrent", mock.Anything, mock.Anything, int64(9), mock.Anything, domain.OrderPaid, mock.Anything, mock.Anything).
		Return(true, nil)
	f.products.On("LockForUpdate", mock.Anything, mock.Anything, []int64{1, 2}).
		Return(map[int64]domain.Product{1: product(1, "Mug", "100", 5), 2: product(2, "Lamp", "250", 1)}, nil)
	f.products.On("Decrement", mock.Anything, mock.Anything, int64(1), 2).Return(nil)
	f.products.On("Decrement", mock.Anything, mock.Anything, int64(2), 1).
		Return(fmt.Errorf("%w: product 2", domain.ErrStockRaceLost))

	out, err := f.paymentService().Reconcile(context.Background(), f.callback(t, "450", payment.ResponseSuccess))

	require.ErrorIs(t, err, domain.ErrStockRaceLost)
	assert.Nil(t, out)
	f.payments.AssertNotCalled(t, "RecordOutcome", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_MalformedReference(t *testing.T) {
	f := newFixture()
	params, err := payment.NewSandbox(f.gateway).Settle("no-separator", money("450"), payment.ResponseSuccess, "NCB")
	require.NoError(t, err)

	_, err = f.paymentService().Reconcile(context.Background(), params)

	require.ErrorIs(t, err, domain.ErrInvalidTxnRef)
	assert.Zero(t, f.tx.Calls)
}
