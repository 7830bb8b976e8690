package repo

import (
	"context"
	"database/sql"
	"fmt"
	"order-pipeline/internal/domain"
)

type CustomerRepo interface {
	// Upsert finds the customer by email and refreshes contact fields, creating it when absent.
	Upsert(ctx context.Context, tx *sql.Tx, c *domain.Customer) error
}

type customerRepo struct{}

func NewCustomerRepo() CustomerRepo {
	return &customerRepo{}
}

func (r *customerRepo) Upsert(ctx context.Context, tx *sql.Tx, c *domain.Customer) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, address) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, phone = EXCLUDED.phone, address = EXCLUDED.address, updated_at = now()
		RETURNING id, created_at, updated_at`,
		c.Name, c.Email, c.Phone, c.Address,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}
