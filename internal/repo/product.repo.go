package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-pipeline/internal/domain"
	"slices"
)

// ProductRepo is the stock ledger: every stock read that precedes a mutation happens
// under a row lock held by the caller's transaction.
type ProductRepo interface {
	// LockForUpdate locks the given products in ascending id order and returns them by id.
	LockForUpdate(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]domain.Product, error)
	// Decrement takes qty units if at least qty are on hand; otherwise ErrStockRaceLost.
	Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error
	Increment(ctx context.Context, tx *sql.Tx, productID int64, qty int) error
	FindById(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

func (r *productRepo) LockForUpdate(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]domain.Product, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, image_url, price, stock, enabled FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		sorted,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]domain.Product, len(sorted))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Price, &p.Stock, &p.Enabled); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *productRepo) Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1`,
		qty, productID,
	)
	if err != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: product %d", domain.ErrStockRaceLost, productID)
	}
	return nil
}

func (r *productRepo) Increment(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2`,
		qty, productID,
	)
	if err != nil {
		return fmt.Errorf("increment stock of product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("increment stock: product %d not found", productID)
	}
	return nil
}

func (r *productRepo) FindById(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, price, stock, enabled FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.ImageURL, &p.Price, &p.Stock, &p.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, image_url, price, stock, enabled) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.Name, p.ImageURL, p.Price, p.Stock, p.Enabled,
	).Scan(&p.ID)
}
