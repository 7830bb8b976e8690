package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-pipeline/internal/domain"
	"time"
)

type OrderRepo interface {
	FindById(ctx context.Context, id int64) (*domain.Order, error)
	FindByIdTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.Order, error)
	FindByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*domain.Order, error)
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	// LatestCodeWithPrefix serialises code allocation for the prefix for the rest of the
	// transaction and returns the highest code using it ("" when none).
	LatestCodeWithPrefix(ctx context.Context, tx *sql.Tx, prefix string) (string, error)
	// UpdateStatusIfCurrent moves the order to status `to` and appends the note entry only
	// while its status is one of `from`. It reports whether a row changed.
	UpdateStatusIfCurrent(ctx context.Context, tx *sql.Tx, id int64, from []domain.OrderStatus, to domain.OrderStatus, noteEntry string, at time.Time) (bool, error)
	// ExtendPaymentWindow restarts the expiry clock of an order still awaiting payment.
	// It reports false once the order has left PENDING_PAYMENT.
	ExtendPaymentWindow(ctx context.Context, id int64, at time.Time) (bool, error)
	FindStuckOrders(ctx context.Context, status domain.OrderStatus, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, code, customer_id, owner_id, total, status, payment_method, note,
	contact_name, email, phone, address, deleted, created_at, updated_at`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, o *domain.Order) error {
	return row.Scan(
		&o.ID,
		&o.Code,
		&o.CustomerID,
		&o.OwnerID,
		&o.Total,
		&o.Status,
		&o.PaymentMethod,
		&o.Note,
		&o.ContactName,
		&o.Email,
		&o.Phone,
		&o.Address,
		&o.Deleted,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *orderRepo) FindById(ctx context.Context, id int64) (*domain.Order, error) {
	return findOrder(ctx, r.db, "id = $1", id)
}

func (r *orderRepo) FindByIdTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.Order, error) {
	return findOrder(ctx, tx, "id = $1", id)
}

func (r *orderRepo) FindByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*domain.Order, error) {
	return findOrder(ctx, tx, "code = $1", code)
}

func findOrder(ctx context.Context, q querier, where string, arg any) (*domain.Order, error) {
	var order domain.Order
	err := scanOrder(q.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE "+where+" AND NOT deleted", arg), &order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err) // system error
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, image_url, quantity, unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("find order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.ImageURL, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Lines = append(order.Lines, l)
	}
	return &order, rows.Err()
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (code, customer_id, owner_id, total, status, payment_method, note,
			contact_name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		order.Code, order.CustomerID, order.OwnerID, order.Total, order.Status, order.PaymentMethod, order.Note,
		order.ContactName, order.Email, order.Phone, order.Address, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: order code %s", ErrDuplicate, order.Code)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Lines {
		l := &order.Lines[i]
		l.OrderID = order.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, image_url, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			l.OrderID, l.ProductID, l.ProductName, l.ImageURL, l.Quantity, l.UnitPrice, l.LineTotal,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepo) LatestCodeWithPrefix(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return "", fmt.Errorf("lock order code prefix: %w", err)
	}

	var code string
	err := tx.QueryRowContext(ctx,
		`SELECT code FROM orders WHERE code LIKE $1 || '%' ORDER BY length(code) DESC, code DESC LIMIT 1`,
		prefix,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest order code: %w", err)
	}
	return code, nil
}

func (r *orderRepo) UpdateStatusIfCurrent(ctx context.Context, tx *sql.Tx, id int64, from []domain.OrderStatus, to domain.OrderStatus, noteEntry string, at time.Time) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    note = CASE WHEN note = '' THEN $2 ELSE note || E'\n' || $2 END,
		    updated_at = $3
		WHERE id = $4 AND status = ANY($5) AND NOT deleted`,
		to, domain.NoteLine(noteEntry, at), at, id, allowed,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) ExtendPaymentWindow(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET updated_at = GREATEST(updated_at, $2) WHERE id = $1 AND status = $3 AND NOT deleted`,
		id, at, domain.OrderPendingPayment,
	)
	if err != nil {
		return false, fmt.Errorf("extend payment window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, status domain.OrderStatus, olderThan time.Duration, limit int) ([]domain.Order, error) {
	var orders []domain.Order

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 AND updated_at < $2 AND NOT deleted ORDER BY updated_at LIMIT $3",
		status, time.Now().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
