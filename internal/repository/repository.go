package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shopmesh/orders-service/internal/models"
)

// ErrOrderNotFound is returned when an order id has no record.
var ErrOrderNotFound = errors.New("order not found")

// ListFilter narrows and pages a ListByStatus query. Offset and Limit are
// row counts, not page numbers.
type ListFilter struct {
	Status *models.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository is the persistence boundary for orders. Implementations
// must persist an order and its items atomically; item rows never exist
// without their parent order.
type OrderRepository interface {
	// CreateWithItems persists the order and all of its items in one
	// transaction, filling in store-generated timestamps.
	CreateWithItems(ctx context.Context, order *models.Order) error

	// GetByIDWithItems fetches an order and its items, or ErrOrderNotFound.
	GetByIDWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// ListByStatus returns one page of orders plus the total matching
	// count. Pages are ordered by creation time ascending with id as a
	// tiebreak, so pagination is stable across concurrent writes. Items
	// are not loaded for list results.
	ListByStatus(ctx context.Context, filter ListFilter) ([]*models.Order, int, error)

	// UpdateStatus sets a new status and returns the updated order with
	// items, or ErrOrderNotFound.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
}

// OrderCache defines caching operations for single orders.
type OrderCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}
