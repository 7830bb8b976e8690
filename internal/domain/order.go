package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPendingPayment    OrderStatus = "PENDING_PAYMENT"
	OrderPendingProcessing OrderStatus = "PENDING_PROCESSING"
	OrderPaid              OrderStatus = "PAID"
	OrderConfirmed         OrderStatus = "CONFIRMED"
	OrderPacking           OrderStatus = "PACKING"
	OrderReadyToShip       OrderStatus = "READY_TO_SHIP"
	OrderShipping          OrderStatus = "SHIPPING"
	OrderDeliveryFailed    OrderStatus = "DELIVERY_FAILED"
	OrderDelivered         OrderStatus = "DELIVERED"
	OrderCompleted         OrderStatus = "COMPLETED"
	OrderCancelled         OrderStatus = "CANCELLED"
)

// StockCommitted reports whether lines of an order in this status currently hold
// decremented stock that a cancellation has to give back.
func (s OrderStatus) StockCommitted() bool {
	return s == OrderPendingProcessing
}

// PaymentSettled reports whether a gateway outcome was already applied (or can no
// longer be applied) to an order in this status.
func (s OrderStatus) PaymentSettled() bool {
	return s != OrderPendingPayment
}

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentGateway PaymentMethod = "GATEWAY"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentGateway
}

// InitialStatus is the status an order is persisted with for this payment method.
func (m PaymentMethod) InitialStatus() OrderStatus {
	if m == PaymentGateway {
		return OrderPendingPayment
	}
	return OrderPendingProcessing
}

// DecrementsAtCreation reports whether stock leaves the shelf when the order is created.
// Gateway orders take stock only once the payment is confirmed.
func (m PaymentMethod) DecrementsAtCreation() bool {
	return m == PaymentCOD
}

type Order struct {
	ID            int64
	Code          string
	CustomerID    int64
	OwnerID       string
	Total         decimal.Decimal
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Note          string
	ContactName   string
	Email         string
	Phone         string
	Address       string
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []OrderLine
}

type OrderLine struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	ImageURL    string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

func NewOrderLine(p Product, qty int) OrderLine {
	return OrderLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		ImageURL:    p.ImageURL,
		Quantity:    qty,
		UnitPrice:   p.Price,
		LineTotal:   p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// SumLines returns Σ(unit price × quantity) over the lines.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// OwnedBy reports whether the order belongs to the given user or guest cart owner.
func (o *Order) OwnedBy(ownerID string) bool {
	return ownerID != "" && o.OwnerID == ownerID
}

// NoteLine formats one audit entry of an order note.
func NoteLine(entry string, at time.Time) string {
	return "[" + at.UTC().Format(time.RFC3339) + "] " + entry
}

// AppendNote adds a timestamped entry to an existing note, keeping earlier entries.
func AppendNote(existing, entry string, at time.Time) string {
	line := NoteLine(entry, at)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
