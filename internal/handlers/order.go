package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soamart/storefront/internal/logging"
	"github.com/soamart/storefront/internal/middleware/auth"
	"github.com/soamart/storefront/internal/models"
	"github.com/soamart/storefront/internal/mykafka"
	"github.com/soamart/storefront/internal/orders"
	"github.com/soamart/storefront/internal/util"
)

type OrderHandler struct {
	Engine   *orders.Engine
	Producer *mykafka.Producer
}

// orderHTTPError translates engine sentinels into transport codes. The
// engine itself stays HTTP-free.
func orderHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrReference):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_failed", "error", err)
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	var req orders.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("order_create_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Engine.CreateOrder(ctx, userID, req)
	if err != nil {
		l.Warn("order_create_failed", "user_id", userID, "error", err)
		return orderHTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  order.UserID,
		"total":   order.Total,
	})

	l.Info("order_create_success", "order_id", order.ID, "user_id", userID, "total", order.Total)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	// Admins see any order; ordinary users only their own.
	var requester *uint
	if auth.Role(c) != orders.RoleAdmin {
		userID, ok := auth.UserID(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
		}
		requester = &userID
	}

	order, err := h.Engine.GetOrder(ctx, uint(id), requester)
	if err != nil {
		l.Warn("order_get_failed", "order_id", id, "error", err)
		return orderHTTPError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListMyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_my_orders")

	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, list, err := h.Engine.ListOrdersForUser(ctx, userID, offset, limit)
	if err != nil {
		l.Error("order_list_failed", "status", 500, "user_id", userID, "error", err)
		return orderHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": list,
		"meta": pageMeta(page, limit, offset, total),
	})
}

func (h *OrderHandler) ListOrdersByStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_by_status")

	status := c.QueryParam("status")
	if status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query param required")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, list, err := h.Engine.ListOrdersByStatus(ctx, models.OrderStatus(status), offset, limit)
	if err != nil {
		l.Warn("order_list_by_status_failed", "order_status", status, "error", err)
		return orderHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": list,
		"meta": pageMeta(page, limit, offset, total),
	})
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Engine.TransitionStatus(ctx, uint(id), models.OrderStatus(req.Status), auth.Role(c))
	if err != nil {
		l.Warn("order_update_status_failed", "order_id", id, "next", req.Status, "error", err)
		return orderHTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_status_updated",
		"orderID": order.ID,
		"status":  string(order.Status),
	})

	l.Info("order_update_status_success", "order_id", order.ID, "order_status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	if err := h.Engine.CancelOrder(ctx, uint(id), userID); err != nil {
		l.Warn("order_cancel_failed", "order_id", id, "user_id", userID, "error", err)
		return orderHTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_cancelled",
		"orderID": id,
		"userID":  userID,
	})

	l.Info("order_cancel_success", "order_id", id, "user_id", userID)
	return c.JSON(http.StatusOK, echo.Map{"message": "order cancelled"})
}
