package orders

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/soamart/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))

	return NewEngine(&GormRepo{DB: db}), db
}

func seedProducts(t *testing.T, db *gorm.DB) (a, b models.Product) {
	t.Helper()

	a = models.Product{Name: "widget", Price: 10.00, Stock: 5, Active: true}
	b = models.Product{Name: "gadget", Price: 3.33, Stock: 9, Active: true}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)
	return a, b
}

func seedOrder(t *testing.T, db *gorm.DB, userID uint, status models.OrderStatus) *models.Order {
	t.Helper()

	order := models.Order{
		UserID: userID,
		Total:  20.00,
		Status: status,
		Items:  []models.OrderItem{{ProductID: 1, Quantity: 2, Price: 20.00}},
	}
	require.NoError(t, db.Create(&order).Error)
	return &order
}

func TestCreateOrder_TotalFromRoundedLines(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	a, b := seedProducts(t, db)
	ctx := context.Background()

	order, err := engine.CreateOrder(ctx, 7, CreateOrderRequest{
		Items: []CreateOrderItem{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 3},
		},
		ShippingAddress: "12 Main St",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.Equal(t, uint(7), order.UserID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 29.99, order.Total)
	assert.Equal(t, "12 Main St", order.ShippingAddress)

	require.Len(t, order.Items, 2)
	assert.Equal(t, 20.00, order.Items[0].Price)
	assert.Equal(t, 9.99, order.Items[1].Price)

	var sum float64
	for _, it := range order.Items {
		sum += it.Price
	}
	assert.Equal(t, order.Total, round2(sum))
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	a, _ := seedProducts(t, db)
	ctx := context.Background()

	tests := []struct {
		name  string
		items []CreateOrderItem
	}{
		{name: "empty items", items: nil},
		{name: "zero quantity", items: []CreateOrderItem{{ProductID: a.ID, Quantity: 0}}},
		{name: "negative quantity", items: []CreateOrderItem{{ProductID: a.ID, Quantity: -1}}},
		{name: "missing product id", items: []CreateOrderItem{{ProductID: 0, Quantity: 1}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateOrder(ctx, 7, CreateOrderRequest{Items: tt.items})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateOrder_UnknownProductLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	a, _ := seedProducts(t, db)
	ctx := context.Background()

	_, err := engine.CreateOrder(ctx, 7, CreateOrderRequest{
		Items: []CreateOrderItem{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: 9999, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReference)

	var orderCount, itemCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, itemCount)
}

func TestCreateOrder_SnapshotsPriceAtCreation(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	a, _ := seedProducts(t, db)
	ctx := context.Background()

	order, err := engine.CreateOrder(ctx, 7, CreateOrderRequest{
		Items: []CreateOrderItem{{ProductID: a.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 20.00, order.Total)

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", a.ID).Update("price", 99.99).Error)

	reloaded, err := engine.GetOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 20.00, reloaded.Total)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, 20.00, reloaded.Items[0].Price)
}

func TestCreateOrder_RepeatedProductLines(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	a, _ := seedProducts(t, db)
	ctx := context.Background()

	// Two lines for the same product are two independent snapshots, not a
	// merge.
	order, err := engine.CreateOrder(ctx, 7, CreateOrderRequest{
		Items: []CreateOrderItem{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 30.00, order.Total)
}

func TestGetOrder_OwnershipReadsAsNotFound(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	order := seedOrder(t, db, 7, models.OrderStatusPending)
	ctx := context.Background()

	owner := uint(7)
	got, err := engine.GetOrder(ctx, order.ID, &owner)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	stranger := uint(8)
	_, err = engine.GetOrder(ctx, order.ID, &stranger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// Privileged path: no requester, no ownership check.
	got, err = engine.GetOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = engine.GetOrder(ctx, 4242, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatus_RoleGate(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	order := seedOrder(t, db, 7, models.OrderStatusPending)
	ctx := context.Background()

	// Even a perfectly valid transition is forbidden for non-admins.
	_, err := engine.TransitionStatus(ctx, order.ID, models.OrderStatusProcessing, "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = engine.TransitionStatus(ctx, order.ID, models.OrderStatusProcessing, "")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := engine.GetOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestTransitionStatus_FullTable(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	ctx := context.Background()

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			order := seedOrder(t, db, 7, from)

			got, err := engine.TransitionStatus(ctx, order.ID, to, RoleAdmin)
			if CanTransition(from, to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got.Status)
			} else {
				require.Error(t, err, "%s -> %s", from, to)
				assert.ErrorIs(t, err, ErrInvalidTransition)

				unchanged, gerr := engine.GetOrder(ctx, order.ID, nil)
				require.NoError(t, gerr)
				assert.Equal(t, from, unchanged.Status, "%s -> %s must not move", from, to)
			}
		}
	}
}

func TestTransitionStatus_UnknownTarget(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	order := seedOrder(t, db, 7, models.OrderStatusPending)

	_, err := engine.TransitionStatus(context.Background(), order.ID, "returned", RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionStatus_NotFound(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)

	_, err := engine.TransitionStatus(context.Background(), 4242, models.OrderStatusShipped, RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_ConditionalWriteLosesStaleRace(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	order := seedOrder(t, db, 7, models.OrderStatusPending)
	ctx := context.Background()

	// Both writers observed pending. The first conditional update wins, the
	// second no longer matches and must report zero rows.
	ok, err := engine.Repo.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Repo.UpdateStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := engine.GetOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)
}

func TestCancelOrder_SelfService(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	ctx := context.Background()

	t.Run("pending cancels once, never twice", func(t *testing.T) {
		order := seedOrder(t, db, 7, models.OrderStatusPending)

		require.NoError(t, engine.CancelOrder(ctx, order.ID, 7))

		got, err := engine.GetOrder(ctx, order.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, got.Status)
		assert.Equal(t, order.Total, got.Total)
		assert.Len(t, got.Items, 1)

		err = engine.CancelOrder(ctx, order.ID, 7)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("processing is cancellable", func(t *testing.T) {
		order := seedOrder(t, db, 7, models.OrderStatusProcessing)
		require.NoError(t, engine.CancelOrder(ctx, order.ID, 7))
	})

	t.Run("shipped and delivered are not", func(t *testing.T) {
		for _, s := range []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusDelivered} {
			order := seedOrder(t, db, 7, s)
			err := engine.CancelOrder(ctx, order.ID, 7)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	})

	t.Run("foreign order reads as not found", func(t *testing.T) {
		order := seedOrder(t, db, 7, models.OrderStatusPending)
		err := engine.CancelOrder(ctx, order.ID, 8)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListOrdersForUser(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedOrder(t, db, 7, models.OrderStatusPending)
	}
	seedOrder(t, db, 8, models.OrderStatusPending)

	total, list, err := engine.ListOrdersForUser(ctx, 7, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)
	for _, o := range list {
		assert.Equal(t, uint(7), o.UserID)
	}
}

func TestListOrdersByStatus(t *testing.T) {
	t.Parallel()

	engine, db := newTestEngine(t)
	seedProducts(t, db)
	ctx := context.Background()

	seedOrder(t, db, 7, models.OrderStatusPending)
	seedOrder(t, db, 7, models.OrderStatusShipped)
	seedOrder(t, db, 8, models.OrderStatusShipped)

	total, list, err := engine.ListOrdersByStatus(ctx, models.OrderStatusShipped, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, _, err = engine.ListOrdersByStatus(ctx, "bogus", 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}
