package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidContactInfo    = errors.New("invalid contact info")
	ErrPaymentMethodRequired = errors.New("payment method required")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotPayable       = errors.New("order is not awaiting payment")
	ErrAmountMismatch        = errors.New("amount does not match order total")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrInvalidTxnRef         = errors.New("invalid transaction reference")
	ErrStockRaceLost         = errors.New("stock changed concurrently")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrForbidden             = errors.New("forbidden")
)

type ViolationKind string

const (
	ViolationUnavailable  ViolationKind = "PRODUCT_UNAVAILABLE"
	ViolationInsufficient ViolationKind = "INSUFFICIENT_STOCK"
)

type StockViolation struct {
	Kind        ViolationKind `json:"kind"`
	ProductID   int64         `json:"productId"`
	ProductName string        `json:"productName"`
	Requested   int           `json:"requested"`
	Available   int           `json:"available"`
}

// StockError batches every line that failed validation so callers can show all of them at once.
type StockError struct {
	Violations []StockViolation
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		switch v.Kind {
		case ViolationUnavailable:
			parts = append(parts, fmt.Sprintf("%s is unavailable", v.ProductName))
		default:
			parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", v.ProductName, v.Requested, v.Available))
		}
	}
	return "stock validation failed: " + strings.Join(parts, "; ")
}

func (e *StockError) Is(target error) bool {
	for _, v := range e.Violations {
		if target == ErrProductUnavailable && v.Kind == ViolationUnavailable {
			return true
		}
		if target == ErrInsufficientStock && v.Kind == ViolationInsufficient {
			return true
		}
	}
	return false
}

// ValidationError lists the request fields that are missing or blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidContactInfo, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidContactInfo }

type TransitionError struct {
	Action  Action
	Actual  OrderStatus
	Allowed []OrderStatus
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%v: cannot %s order in status %s (allowed from: %s)",
		ErrInvalidTransition, e.Action, e.Actual, strings.Join(allowed, ", "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
