package service

import (
	"time"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infrastructure/payment"
	"order-pipeline/internal/mocks"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

const testSecret = "s3cret-hash-key"

type fixture struct {
	tx        *mocks.TxRunner
	orders    *mocks.MockOrderRepository
	products  *mocks.MockProductRepository
	carts     *mocks.MockCartRepository
	customers *mocks.MockCustomerRepository
	payments  *mocks.MockPaymentRepository
	publisher *mocks.MockPublisher
	snapshots *mocks.MockSnapshotStore
	gateway   *payment.Gateway
}

func newFixture() *fixture {
	return &fixture{
		tx:        &mocks.TxRunner{},
		orders:    new(mocks.MockOrderRepository),
		products:  new(mocks.MockProductRepository),
		carts:     new(mocks.MockCartRepository),
		customers: new(mocks.MockCustomerRepository),
		payments:  new(mocks.MockPaymentRepository),
		publisher: new(mocks.MockPublisher),
		snapshots: new(mocks.MockSnapshotStore),
		gateway: payment.NewGateway(payment.Config{
			BaseURL:     "https://sandbox.gateway.test/pay",
			TmnCode:     "TMN01",
			HashSecret:  testSecret,
			ReturnURL:   "http://localhost:8080/api/payments/return",
			Version:     "2.1.0",
			Currency:    "VND",
			Locale:      "vn",
			AmountScale: 100,
		}),
	}
}

func (f *fixture) orderService() *orderService {
	svc := NewOrderService(f.tx, f.orders, f.products, f.carts, f.customers, f.snapshots, f.publisher, time.UTC, zap.NewNop()).(*orderService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (f *fixture) paymentService() *paymentService {
	svc := NewPaymentService(f.tx, f.orders, f.products, f.payments, f.gateway, f.publisher, zap.NewNop()).(*paymentService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (f *fixture) lifecycleService() *lifecycleService {
	svc := NewLifecycleService(f.tx, f.orders, f.products, f.publisher, zap.NewNop()).(*lifecycleService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id int64, name, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: money(price), Stock: stock, Enabled: true}
}

func cartWith(lines ...domain.CartLine) *domain.Cart {
	for i := range lines {
		lines[i].CartID = 11
	}
	return &domain.Cart{ID: 11, OwnerID: "user-1", Lines: lines}
}

func cartLine(p domain.Product, qty int) domain.CartLine {
	return domain.CartLine{ProductID: p.ID, Quantity: qty, CachedPrice: p.Price, Product: p}
}

func orderWith(status domain.OrderStatus, method domain.PaymentMethod, lines ...domain.OrderLine) *domain.Order {
	return &domain.Order{
		ID:            9,
		Code:          "HD202610160001",
		OwnerID:       "user-1",
		Total:         domain.SumLines(lines),
		Status:        status,
		PaymentMethod: method,
		Lines:         lines,
	}
}

func validInput(method domain.PaymentMethod) CreateOrderInput {
	return CreateOrderInput{
		OwnerID:       "user-1",
		ContactName:   "Nguyen Van A",
		Email:         "a@example.com",
		Phone:         "0901234567",
		Address:       "1 Le Loi, District 1",
		PaymentMethod: method,
	}
}
