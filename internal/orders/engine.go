package orders

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/soamart/storefront/internal/models"
	"gorm.io/gorm"
)

const RoleAdmin = "admin"

// Engine owns order creation and the status lifecycle. It snapshots catalog
// prices into line subtotals at creation time; later price changes never
// touch existing orders. The repo is injected at construction, never reached
// through package state.
type Engine struct {
	Repo *GormRepo
}

func NewEngine(repo *GormRepo) *Engine {
	return &Engine{Repo: repo}
}

type CreateOrderItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (e *Engine) CreateOrder(ctx context.Context, userID uint, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	seen := make(map[uint]struct{}, len(req.Items))
	ids := make([]uint, 0, len(req.Items))
	for i := range req.Items {
		it := req.Items[i]
		if it.ProductID == 0 {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
		if _, ok := seen[it.ProductID]; !ok {
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}

	products, err := e.Repo.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(products) != len(ids) {
		return nil, fmt.Errorf("%w: one or more products not found", ErrReference)
	}

	priceByID := make(map[uint]float64, len(products))
	for _, p := range products {
		priceByID[p.ID] = p.Price
	}

	// Each line is rounded to cents before summation so the stored item
	// subtotals always add up to the order total.
	var total float64
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		line := round2(priceByID[it.ProductID] * float64(it.Quantity))
		total += line
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  uint(it.Quantity),
			Price:     line,
		})
	}

	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		Total:           round2(total),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
	}
	if err := e.Repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return order, nil
}

// GetOrder returns the order with its items. With requesterID set, an order
// owned by someone else reads as not found so callers cannot probe for
// foreign order ids. A nil requesterID is the privileged path.
func (e *Engine) GetOrder(ctx context.Context, id uint, requesterID *uint) (*models.Order, error) {
	order, err := e.Repo.OrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if requesterID != nil && order.UserID != *requesterID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return order, nil
}

func (e *Engine) ListOrdersForUser(ctx context.Context, userID uint, offset, limit int) (int64, []models.Order, error) {
	total, list, err := e.Repo.OrdersByUser(ctx, userID, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return total, list, nil
}

func (e *Engine) ListOrdersByStatus(ctx context.Context, status models.OrderStatus, offset, limit int) (int64, []models.Order, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return 0, nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	total, list, err := e.Repo.OrdersByStatus(ctx, status, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return total, list, nil
}

// TransitionStatus moves an order along the transition table. The write is
// conditional on the status read above it, so two racing transitions from
// the same observed state produce exactly one winner.
func (e *Engine) TransitionStatus(ctx context.Context, id uint, next models.OrderStatus, actorRole string) (*models.Order, error) {
	if actorRole != RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if _, ok := ParseStatus(string(next)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}

	order, err := e.GetOrder(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, next) {
		return nil, fmt.Errorf("%w: cannot move order %d from %s to %s", ErrInvalidTransition, id, order.Status, next)
	}

	ok, err := e.Repo.UpdateStatus(ctx, id, order.Status, next)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %d is no longer %s", ErrInvalidTransition, id, order.Status)
	}

	return e.GetOrder(ctx, id, nil)
}

// CancelOrder is the self-service path: the order must belong to the
// requester and still be pending or processing. A repeat cancel fails with
// an invalid-transition error rather than silently succeeding.
func (e *Engine) CancelOrder(ctx context.Context, id, requesterID uint) error {
	order, err := e.GetOrder(ctx, id, &requesterID)
	if err != nil {
		return err
	}

	if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusProcessing {
		return fmt.Errorf("%w: cannot cancel this order (status %s)", ErrInvalidTransition, order.Status)
	}

	ok, err := e.Repo.UpdateStatus(ctx, id, order.Status, models.OrderStatusCancelled)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("%w: cannot cancel this order (status changed)", ErrInvalidTransition)
	}
	return nil
}
