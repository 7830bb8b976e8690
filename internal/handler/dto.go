package handler

import (
	"time"

	"order-pipeline/internal/domain"
)

type CreateOrderRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	Note          string `json:"note"`
}

type TransitionRequest struct {
	Note string `json:"note"`
}

type CustomerResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type OrderLineResponse struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	ImageURL    string `json:"imageUrl"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

type OrderResponse struct {
	ID            int64               `json:"id"`
	Code          string              `json:"code"`
	Status        domain.OrderStatus  `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	Total         string              `json:"total"`
	Note          string              `json:"note,omitempty"`
	Customer      *CustomerResponse   `json:"customer,omitempty"`
	Items         []OrderLineResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	Warnings      []string            `json:"warnings,omitempty"`
}

type PaymentURLResponse struct {
	PaymentURL string `json:"paymentUrl"`
	OrderID    int64  `json:"orderId"`
	OrderCode  string `json:"orderCode"`
	Amount     string `json:"amount"`
	TxnRef     string `json:"txnRef"`
}

// WebhookAck is the only body the gateway reads back; field names are fixed by the gateway.
type WebhookAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = OrderLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ImageURL:    l.ImageURL,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			LineTotal:   l.LineTotal.StringFixed(2),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		Code:          o.Code,
		Status:        o.Status,
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total.StringFixed(2),
		Note:          o.Note,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func toCustomerResponse(c *domain.Customer) *CustomerResponse {
	if c == nil {
		return nil
	}
	return &CustomerResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address}
}
