package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	channelReturn  = "return"
	channelWebhook = "webhook"

	resultPath = "/payment/result"
)

// Webhook response codes understood by the gateway.
const (
	rspConfirmed        = "00"
	rspOrderNotFound    = "01"
	rspAlreadyConfirmed = "02"
	rspInvalidAmount    = "04"
	rspInvalidSignature = "97"
	rspUnknownError     = "99"
)

func (h *Handler) PaymentURL(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("orderId"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "orderId is required")
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "amount must be a decimal number")
		return
	}

	res, err := h.payments.BuildPaymentURL(c.Request.Context(), service.PaymentURLInput{
		OrderID:  id,
		Amount:   amount,
		BankCode: c.Query("bankCode"),
		Language: c.Query("language"),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PaymentURLResponse{
		PaymentURL: res.URL,
		OrderID:    res.OrderID,
		OrderCode:  res.OrderCode,
		Amount:     res.Amount.StringFixed(2),
		TxnRef:     res.TxnRef,
	})
}

// PaymentReturn handles the shopper's browser coming back from the gateway and redirects it
// to the storefront result page.
func (h *Handler) PaymentReturn(c *gin.Context) {
	out, err := h.payments.Reconcile(c.Request.Context(), callbackParams(c))
	h.countReconciliation(channelReturn, out, err)

	q := url.Values{}
	switch {
	case err != nil:
		q.Set("success", "false")
		q.Set("reason", h.failureReason(c, err))
	case settledAsPaid(out):
		q.Set("success", "true")
		q.Set("orderId", strconv.FormatInt(out.OrderID, 10))
		q.Set("orderCode", out.OrderCode)
		q.Set("amount", out.Amount.StringFixed(2))
	default:
		q.Set("success", "false")
		q.Set("orderId", strconv.FormatInt(out.OrderID, 10))
		q.Set("orderCode", out.OrderCode)
		q.Set("code", out.ResponseCode)
		q.Set("reason", outcomeReason(out))
		if items := h.cartSnapshot(c, out.OrderCode); items != "" {
			q.Set("cartItems", items)
		}
	}

	c.Redirect(http.StatusFound, h.frontendURL+resultPath+"?"+q.Encode())
}

// PaymentWebhook always answers 200; the gateway only reads the embedded code.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	out, err := h.payments.Reconcile(c.Request.Context(), callbackParams(c))
	h.countReconciliation(channelWebhook, out, err)

	code := webhookCode(out, err)
	if code == rspUnknownError {
		h.log.Error("webhook reconciliation failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("txn_ref", c.Query("txnRef")),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, WebhookAck{RspCode: code, Message: webhookMessages[code]})
}

var webhookMessages = map[string]string{
	rspConfirmed:        "Confirm Success",
	rspOrderNotFound:    "Order not found",
	rspAlreadyConfirmed: "Order already confirmed",
	rspInvalidAmount:    "Invalid amount",
	rspInvalidSignature: "Invalid signature",
	rspUnknownError:     "Unknown error",
}

func webhookCode(out *service.ReconciliationOutcome, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return rspInvalidSignature
	case errors.Is(err, domain.ErrOrderNotFound):
		return rspOrderNotFound
	case errors.Is(err, domain.ErrAmountMismatch):
		return rspInvalidAmount
	case err != nil:
		return rspUnknownError
	case out.Kind == service.OutcomeAlreadyProcessed:
		return rspAlreadyConfirmed
	}
	// Includes a late payment on a cancelled order: it is recorded, so the gateway can stop.
	return rspConfirmed
}

func settledAsPaid(out *service.ReconciliationOutcome) bool {
	switch out.Kind {
	case service.OutcomeSuccess:
		return true
	case service.OutcomeAlreadyProcessed:
		return out.Status != domain.OrderCancelled && out.Status != domain.OrderPendingPayment
	}
	return false
}

func outcomeReason(out *service.ReconciliationOutcome) string {
	switch {
	case out.Kind == service.OutcomeOutOfStock:
		return "Payment received but some items sold out; the order was cancelled and will be refunded"
	case out.Kind == service.OutcomePaidAfterCancel:
		return "Payment received after the order was cancelled; it will be refunded"
	case out.Status == domain.OrderCancelled && out.Kind == service.OutcomeAlreadyProcessed:
		return "Order was already cancelled"
	}
	return out.Reason
}

func (h *Handler) failureReason(c *gin.Context, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return "Invalid signature"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, domain.ErrAmountMismatch):
		return "Paid amount does not match the order"
	case errors.Is(err, domain.ErrInvalidTxnRef):
		return "Invalid transaction reference"
	}
	h.log.Error("payment return failed",
		zap.String("request_id", c.GetString(ctxRequestID)),
		zap.Error(err),
	)
	return "Payment could not be processed"
}

func (h *Handler) cartSnapshot(c *gin.Context, orderCode string) string {
	items, err := h.snapshots.Load(c.Request.Context(), orderCode)
	if err != nil {
		h.log.Warn("cart snapshot not loaded", zap.String("order_code", orderCode), zap.Error(err))
		return ""
	}
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}

func (h *Handler) countReconciliation(channel string, out *service.ReconciliationOutcome, err error) {
	label := "error"
	switch {
	case err == nil:
		label = string(out.Kind)
	case errors.Is(err, domain.ErrInvalidSignature):
		label = "invalid_signature"
	case errors.Is(err, domain.ErrOrderNotFound):
		label = "order_not_found"
	case errors.Is(err, domain.ErrAmountMismatch):
		label = "amount_mismatch"
	}
	h.metrics.Reconciliations.WithLabelValues(channel, label).Inc()
}

// callbackParams flattens the query string; the gateway never repeats a key.
func callbackParams(c *gin.Context) map[string]string {
	query := c.Request.URL.Query()
	params := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
