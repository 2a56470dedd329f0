package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/apperrors"
	"github.com/shopmesh/orders-service/internal/clients"
	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/events"
	"github.com/shopmesh/orders-service/internal/models"
	"github.com/shopmesh/orders-service/internal/repository"
)

// CreateOrderItem is one requested line: a product reference and a count.
// Prices always come from the products service, never from the caller.
type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// PageQuery selects one page of orders, optionally filtered by status.
type PageQuery struct {
	Page   int
	Limit  int
	Status *models.OrderStatus
}

// PageMeta describes the page returned by FindAll.
type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// OrderPage is one page of orders plus its metadata.
type OrderPage struct {
	Data []*models.Order `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// OrderService orchestrates order creation, retrieval and status changes.
type OrderService struct {
	orderRepo      repository.OrderRepository
	orderCache     repository.OrderCache
	products       clients.ProductValidator
	eventPublisher events.OrderEventPublisher
	config         *config.Config
	logger         *zap.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	orderCache repository.OrderCache,
	products clients.ProductValidator,
	eventPublisher events.OrderEventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		orderCache:     orderCache,
		products:       products,
		eventPublisher: eventPublisher,
		config:         cfg,
		logger:         logger.Named("order-service"),
	}
}

// Create validates the referenced products, computes the order totals from
// the returned prices, persists the order with its items atomically, and
// returns it with item names attached.
//
// Any failure along the way is collapsed into the generic bad-request
// reply; the distinguishing detail goes to the logs only.
func (s *OrderService) Create(ctx context.Context, items []CreateOrderItem) (*models.Order, error) {
	s.logger.Info("Creating order", zap.Int("item_count", len(items)))

	productIDs := distinctIDs(items)

	products, err := s.products.Validate(ctx, productIDs)
	if err != nil {
		s.logger.Error("Product validation failed", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	if missing := products.MissingFrom(productIDs); len(missing) > 0 {
		s.logger.Error("Requested products do not exist",
			zap.Stringers("missing_product_ids", missing),
			zap.Error(clients.ErrProductNotFound),
		)
		return nil, apperrors.ErrInternal
	}

	orderItems := make([]models.OrderItem, len(items))
	for i, item := range items {
		product, _ := products.ByID(item.ProductID)
		orderItems[i] = models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		}
	}

	totalAmount, totalItems := models.ComputeTotals(orderItems)

	order := &models.Order{
		ID:          uuid.New(),
		Status:      models.OrderStatusPending,
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Items:       orderItems,
	}

	if err := s.orderRepo.CreateWithItems(ctx, order); err != nil {
		s.logger.Error("Failed to persist order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, apperrors.ErrInternal
	}

	// Cache and events are best effort; the order is already durable.
	if err := s.orderCache.Set(ctx, order); err != nil {
		s.logger.Warn("Failed to cache order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, order); err != nil {
		s.logger.Warn("Failed to publish order created event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	attachNames(order, products)

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total_amount", order.TotalAmount.String()),
	)

	return order, nil
}

// FindAll returns one page of orders filtered by status, plus metadata.
// Missing page and limit values fall back to the configured defaults.
func (s *OrderService) FindAll(ctx context.Context, query PageQuery) (*OrderPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}

	limit := query.Limit
	if limit < 1 {
		limit = s.config.Pagination.DefaultLimit
	}
	if limit > s.config.Pagination.MaxLimit {
		limit = s.config.Pagination.MaxLimit
	}

	orders, total, err := s.orderRepo.ListByStatus(ctx, repository.ListFilter{
		Status: query.Status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	return &OrderPage{
		Data: orders,
		Meta: PageMeta{
			Total:    total,
			Page:     page,
			LastPage: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// FindOne fetches an order with its items and attaches the product name to
// every item, mirroring creation-time enrichment.
func (s *OrderService) FindOne(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.lookupOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(order.Items) == 0 {
		return order, nil
	}

	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.Validate(ctx, productIDs)
	if err != nil {
		s.logger.Error("Product enrichment failed",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, apperrors.ErrInternal
	}

	if missing := products.MissingFrom(productIDs); len(missing) > 0 {
		s.logger.Error("Order references unknown products",
			zap.String("order_id", id.String()),
			zap.Stringers("missing_product_ids", missing),
			zap.Error(clients.ErrProductNotFound),
		)
		return nil, apperrors.ErrInternal
	}

	attachNames(order, products)

	return order, nil
}

// ChangeStatus is an idempotent no-op when the order already carries the
// requested status; otherwise it persists the new status and returns the
// updated record. Any enum member is accepted as a target: the transition
// graph is deliberately unrestricted.
func (s *OrderService) ChangeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	order, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		s.logger.Debug("Status unchanged",
			zap.String("order_id", id.String()),
			zap.String("status", string(status)),
		)
		return order, nil
	}

	previousStatus := order.Status

	updated, err := s.orderRepo.UpdateStatus(ctx, id, status)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("Order with id %s not found", id))
		}
		s.logger.Error("Failed to update order status",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, apperrors.ErrInternal
	}

	if err := s.orderCache.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate cached order",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, updated, previousStatus); err != nil {
		s.logger.Warn("Failed to publish status change event",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", id.String()),
		zap.String("previous_status", string(previousStatus)),
		zap.String("new_status", string(status)),
	)

	return updated, nil
}

// Update is a placeholder; no update semantics exist yet.
func (s *OrderService) Update(id uuid.UUID) string {
	return fmt.Sprintf("This action updates a #%s order", id)
}

// Remove is a placeholder; orders are never hard-deleted.
func (s *OrderService) Remove(id uuid.UUID) string {
	return fmt.Sprintf("This action removes a #%s order", id)
}

// lookupOrder reads through the cache to the store.
func (s *OrderService) lookupOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if cached, err := s.orderCache.Get(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	order, err := s.orderRepo.GetByIDWithItems(ctx, id)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("Order with id %s not found", id))
		}
		s.logger.Error("Failed to fetch order",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, apperrors.ErrInternal
	}

	if err := s.orderCache.Set(ctx, order); err != nil {
		s.logger.Warn("Failed to cache order",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
	}

	return order, nil
}

func attachNames(order *models.Order, products models.ProductSet) {
	for i := range order.Items {
		if product, ok := products.ByID(order.Items[i].ProductID); ok {
			order.Items[i].Name = product.Name
		}
	}
}

func distinctIDs(items []CreateOrderItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
