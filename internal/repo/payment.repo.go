package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-pipeline/internal/domain"
)

type PaymentRepo interface {
	// CreatePayment records an attempt when the shopper is sent to the gateway.
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	// RecordOutcome stores the gateway result for a transaction reference, creating the
	// attempt row if the redirect was built elsewhere.
	RecordOutcome(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	// FindByTxnRef reads the attempt and holds its row lock until tx ends. nil when the
	// reference was never recorded.
	FindByTxnRef(ctx context.Context, tx *sql.Tx, txnRef string) (*domain.Payment, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, txn_ref, amount, bank_code, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(
		ctx, query, payment.ID, payment.OrderID, payment.TxnRef, payment.Amount, payment.BankCode,
		payment.Status, payment.CreatedAt, payment.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: payment %s", ErrDuplicate, payment.TxnRef)
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) RecordOutcome(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, txn_ref, amount, bank_code, gateway_txn_no, response_code, pay_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (txn_ref) DO UPDATE
		SET status = EXCLUDED.status,
		    bank_code = EXCLUDED.bank_code,
		    gateway_txn_no = EXCLUDED.gateway_txn_no,
		    response_code = EXCLUDED.response_code,
		    pay_date = EXCLUDED.pay_date,
		    updated_at = EXCLUDED.updated_at`
	_, err := tx.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.OrderID,
		payment.TxnRef,
		payment.Amount,
		payment.BankCode,
		payment.GatewayTxnNo,
		payment.ResponseCode,
		payment.PayDate,
		payment.Status,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record payment outcome: %w", err)
	}
	return nil
}

func (r *paymentRepo) FindByTxnRef(ctx context.Context, tx *sql.Tx, txnRef string) (*domain.Payment, error) {
	query := `SELECT id, order_id, txn_ref, amount, bank_code, gateway_txn_no, response_code, pay_date, status, created_at, updated_at
		FROM payments WHERE txn_ref = $1 FOR UPDATE`
	var p domain.Payment
	err := tx.QueryRowContext(ctx, query, txnRef).Scan(
		&p.ID,
		&p.OrderID,
		&p.TxnRef,
		&p.Amount,
		&p.BankCode,
		&p.GatewayTxnNo,
		&p.ResponseCode,
		&p.PayDate,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
