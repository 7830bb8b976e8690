package handler

import (
	"errors"
	"net/http"

	"order-pipeline/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type transitionDetails struct {
	Action  domain.Action        `json:"action"`
	Actual  domain.OrderStatus   `json:"actual"`
	Allowed []domain.OrderStatus `json:"allowed"`
}

// writeError maps domain errors to HTTP status codes. Anything unrecognised is a 500
// and its text stays in the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		stockErr      *domain.StockError
		validationErr *domain.ValidationError
		transitionErr *domain.TransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, errorBody{Error: "INVALID_CONTACT_INFO", Message: err.Error(), Details: validationErr.Fields})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, errorBody{Error: "STOCK_VALIDATION_FAILED", Message: err.Error(), Details: stockErr.Violations})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, errorBody{Error: "INVALID_TRANSITION", Message: err.Error(), Details: transitionDetails{
			Action:  transitionErr.Action,
			Actual:  transitionErr.Actual,
			Allowed: transitionErr.Allowed,
		}})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, errorBody{Error: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrPaymentMethodRequired):
		c.JSON(http.StatusBadRequest, errorBody{Error: "PAYMENT_METHOD_REQUIRED", Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, errorBody{Error: "EMPTY_CART", Message: err.Error()})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: "ORDER_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, errorBody{Error: "ORDER_NOT_PAYABLE", Message: err.Error()})
	case errors.Is(err, domain.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, errorBody{Error: "AMOUNT_MISMATCH", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, errorBody{Error: "INVALID_SIGNATURE", Message: err.Error()})
	case errors.Is(err, domain.ErrStockRaceLost):
		c.JSON(http.StatusConflict, errorBody{Error: "STOCK_RACE_LOST", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody{Error: "FORBIDDEN", Message: err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: msg})
}
