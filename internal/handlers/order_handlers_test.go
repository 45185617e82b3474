package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soamart/storefront/internal/middleware/auth"
	"github.com/soamart/storefront/internal/models"
	"github.com/soamart/storefront/internal/orders"
)

func newOrderHandler(t *testing.T) (*OrderHandler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))

	return &OrderHandler{Engine: orders.NewEngine(&orders.GormRepo{DB: db})}, db
}

func newJSONContext(t *testing.T, method, target string, body any, userID uint, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(auth.CtxUserID, userID)
	c.Set(auth.CtxRole, role)
	return c, rec
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	t.Parallel()

	h, db := newOrderHandler(t)
	prod := models.Product{Name: "widget", Price: 10.00, Active: true}
	require.NoError(t, db.Create(&prod).Error)

	body := map[string]any{
		"items": []map[string]any{
			{"product_id": prod.ID, "quantity": 2},
		},
		"payment_method": "card",
	}
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/orders", body, 7, "user")

	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, uint(7), order.UserID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 20.00, order.Total)
	assert.Len(t, order.Items, 1)
}

func TestOrderHandler_CreateOrder_UnknownProduct(t *testing.T) {
	t.Parallel()

	h, _ := newOrderHandler(t)

	body := map[string]any{
		"items": []map[string]any{{"product_id": 4242, "quantity": 1}},
	}
	c, _ := newJSONContext(t, http.MethodPost, "/api/v1/orders", body, 7, "user")

	err := h.CreateOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestOrderHandler_GetOrder_OwnershipIs404(t *testing.T) {
	t.Parallel()

	h, db := newOrderHandler(t)
	order := models.Order{UserID: 7, Total: 5, Status: models.OrderStatusPending}
	require.NoError(t, db.Create(&order).Error)

	c, rec := newJSONContext(t, http.MethodGet, "/", nil, 7, "user")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.GetOrder(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newJSONContext(t, http.MethodGet, "/", nil, 8, "user")
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := h.GetOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusNotFound, he.Code)

	// Admin sees any order regardless of owner.
	c, rec = newJSONContext(t, http.MethodGet, "/", nil, 8, "admin")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.GetOrder(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	t.Parallel()

	h, db := newOrderHandler(t)
	order := models.Order{UserID: 7, Total: 5, Status: models.OrderStatusPending}
	require.NoError(t, db.Create(&order).Error)

	c, rec := newJSONContext(t, http.MethodPatch, "/", map[string]string{"status": "processing"}, 1, "admin")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	// Backward transition is rejected with a conflict.
	c, _ = newJSONContext(t, http.MethodPatch, "/", map[string]string{"status": "pending"}, 1, "admin")
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusConflict, he.Code)

	// Non-admin role is forbidden.
	c, _ = newJSONContext(t, http.MethodPatch, "/", map[string]string{"status": "shipped"}, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues("1")
	err = h.UpdateStatus(c)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	t.Parallel()

	h, db := newOrderHandler(t)
	order := models.Order{UserID: 7, Total: 5, Status: models.OrderStatusPending}
	require.NoError(t, db.Create(&order).Error)

	c, rec := newJSONContext(t, http.MethodPost, "/", nil, 7, "user")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.CancelOrder(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A second cancel is a conflict, not a silent success.
	c, _ = newJSONContext(t, http.MethodPost, "/", nil, 7, "user")
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := h.CancelOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	t.Parallel()

	h, db := newOrderHandler(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Order{UserID: 7, Total: 5, Status: models.OrderStatusPending}).Error)
	}
	require.NoError(t, db.Create(&models.Order{UserID: 8, Total: 5, Status: models.OrderStatusPending}).Error)

	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/orders?page=1&size=2", nil, 7, "user")
	require.NoError(t, h.ListMyOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Order `json:"data"`
		Meta struct {
			Total    int64 `json:"total"`
			HasNext  bool  `json:"has_next"`
			HasPrev  bool  `json:"has_prev"`
			PageSize int   `json:"size"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.True(t, resp.Meta.HasNext)
}
