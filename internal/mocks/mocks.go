package mocks

import (
	"context"
	"database/sql"
	"time"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/cache"

	"github.com/stretchr/testify/mock"
)

// TxRunner runs fn with a nil transaction; the mocked repositories never touch it.
type TxRunner struct {
	Calls int
}

func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	r.Calls++
	return fn(ctx, nil)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindById(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIdTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*domain.Order, error) {
	args := m.Called(ctx, tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) LatestCodeWithPrefix(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	args := m.Called(ctx, tx, prefix)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatusIfCurrent(ctx context.Context, tx *sql.Tx, id int64, from []domain.OrderStatus, to domain.OrderStatus, noteEntry string, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, from, to, noteEntry, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ExtendPaymentWindow(ctx context.Context, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) FindStuckOrders(ctx context.Context, status domain.OrderStatus, olderThan time.Duration, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, status, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]domain.Product, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]domain.Product), args.Error(1)
}

func (m *MockProductRepository) Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	args := m.Called(ctx, tx, productID, qty)
	return args.Error(0)
}

func (m *MockProductRepository) Increment(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	args := m.Called(ctx, tx, productID, qty)
	return args.Error(0)
}

func (m *MockProductRepository) FindById(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) LoadForOwner(ctx context.Context, tx *sql.Tx, ownerID string) (*domain.Cart, error) {
	args := m.Called(ctx, tx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *MockCartRepository) ClearLines(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *MockCartRepository) AddItem(ctx context.Context, ownerID string, productID int64, qty int) error {
	args := m.Called(ctx, ownerID, productID, qty)
	return args.Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Upsert(ctx context.Context, tx *sql.Tx, c *domain.Customer) error {
	args := m.Called(ctx, tx, c)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) RecordOutcome(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByTxnRef(ctx context.Context, tx *sql.Tx, txnRef string) (*domain.Payment, error) {
	args := m.Called(ctx, tx, txnRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Save(ctx context.Context, orderCode string, items []cache.CartItem) error {
	args := m.Called(ctx, orderCode, items)
	return args.Error(0)
}

func (m *MockSnapshotStore) Load(ctx context.Context, orderCode string) ([]cache.CartItem, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cache.CartItem), args.Error(1)
}
