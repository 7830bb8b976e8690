package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-pipeline/internal/domain"
)

type CartRepo interface {
	// LoadForOwner returns the owner's cart with product snapshots, or nil when there is none.
	LoadForOwner(ctx context.Context, tx *sql.Tx, ownerID string) (*domain.Cart, error)
	// ClearLines runs outside any order transaction.
	ClearLines(ctx context.Context, cartID int64) error
	AddItem(ctx context.Context, ownerID string, productID int64, qty int) error
}

type cartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepo {
	return &cartRepo{db: db}
}

func (r *cartRepo) LoadForOwner(ctx context.Context, tx *sql.Tx, ownerID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := tx.QueryRowContext(ctx, `SELECT id, owner_id FROM carts WHERE owner_id = $1`, ownerID).
		Scan(&cart.ID, &cart.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price,
		       p.id, p.name, p.image_url, p.price, p.stock, p.enabled
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(
			&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.CachedPrice,
			&l.Product.ID, &l.Product.Name, &l.Product.ImageURL, &l.Product.Price, &l.Product.Stock, &l.Product.Enabled,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Lines = append(cart.Lines, l)
	}
	return &cart, rows.Err()
}

func (r *cartRepo) ClearLines(ctx context.Context, cartID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart %d: %w", cartID, err)
	}
	return nil
}

func (r *cartRepo) AddItem(ctx context.Context, ownerID string, productID int64, qty int) error {
	var cartID int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (owner_id) VALUES ($1)
		ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING id`, ownerID).Scan(&cartID)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, price)
		SELECT $1, p.id, $3, p.price FROM products p WHERE p.id = $2
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, qty)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}
