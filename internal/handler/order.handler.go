package handler

import (
	"net/http"
	"strconv"
	"strings"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/service"

	"github.com/gin-gonic/gin"
)

// ownerID identifies whose cart and orders the caller acts on: the signed-in user, or the
// guest cart id.
func ownerID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerUserID)); id != "" {
		return id
	}
	return strings.TrimSpace(c.GetHeader(headerCartID))
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{ID: ownerID(c), Admin: c.GetHeader(headerUserRole) == roleAdmin}
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		OwnerID:       ownerID(c),
		ContactName:   req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Note:          req.Note,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.metrics.OrdersCreated.WithLabelValues(string(res.Order.PaymentMethod)).Inc()

	body := toOrderResponse(res.Order)
	body.Customer = toCustomerResponse(res.Customer)
	body.Warnings = res.Warnings
	c.JSON(http.StatusCreated, body)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if who := actor(c); !who.Admin && !order.OwnedBy(who.ID) {
		h.writeError(c, domain.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	order, err := h.lifecycle.Cancel(c.Request.Context(), id, actor(c), req.Note)
	if err != nil {
		h.metrics.Transitions.WithLabelValues(string(domain.ActionCancel), "rejected").Inc()
		h.writeError(c, err)
		return
	}
	h.metrics.Transitions.WithLabelValues(string(domain.ActionCancel), "applied").Inc()
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) TransitionOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	action := domain.Action(c.Param("action"))
	if _, known := domain.LookupTransition(action); !known || action == domain.ActionCancel {
		c.JSON(http.StatusNotFound, errorBody{Error: "UNKNOWN_ACTION", Message: "unknown action " + string(action)})
		return
	}
	var req TransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	order, err := h.lifecycle.Transition(c.Request.Context(), id, action, actor(c), req.Note)
	if err != nil {
		h.metrics.Transitions.WithLabelValues(string(action), "rejected").Inc()
		h.writeError(c, err)
		return
	}
	h.metrics.Transitions.WithLabelValues(string(action), "applied").Inc()
	c.JSON(http.StatusOK, toOrderResponse(order))
}
