package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/models"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *zap.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger.Named("order-repository"),
	}
}

var _ OrderRepository = (*PostgresOrderRepository)(nil)

// CreateWithItems persists the order and its items in one transaction.
func (r *PostgresOrderRepository) CreateWithItems(ctx context.Context, order *models.Order) error {
	r.logger.Debug("Creating order",
		zap.String("order_id", order.ID.String()),
		zap.Int("item_count", len(order.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	const orderQuery = `
		INSERT INTO orders (id, status, total_amount, total_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.Status,
		order.TotalAmount,
		order.TotalItems,
		order.CreatedAt,
		order.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to insert order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("insert order: %w", err)
	}

	const itemQuery = `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
	`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID,
			item.ProductID,
			item.Quantity,
			item.Price,
		); err != nil {
			r.logger.Error("Failed to insert order item",
				zap.String("order_id", order.ID.String()),
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}

	r.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("total_items", order.TotalItems),
	)

	return nil
}

// GetByIDWithItems fetches an order and its items.
func (r *PostgresOrderRepository) GetByIDWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	const query = `
		SELECT id, status, total_amount, total_items, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Status,
		&order.TotalAmount,
		&order.TotalItems,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch order",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// ListByStatus returns one page of orders plus the total matching count.
func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, filter ListFilter) ([]*models.Order, int, error) {
	where := ""
	args := make([]interface{}, 0, 3)
	if filter.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *filter.Status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM orders" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count orders", zap.Error(err))
		return nil, 0, err
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, status, total_amount, total_items, created_at, updated_at
		FROM orders%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID,
			&order.Status,
			&order.TotalAmount,
			&order.TotalItems,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// UpdateStatus sets a new status and returns the updated order.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	r.logger.Debug("Updating order status",
		zap.String("order_id", id.String()),
		zap.String("new_status", string(status)),
	)

	const query = `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id
	`

	var returnedID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, id, status, time.Now().UTC()).Scan(&returnedID)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update order status",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("new_status", string(status)),
	)

	return r.GetByIDWithItems(ctx, id)
}

func (r *PostgresOrderRepository) loadItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	const query = `
		SELECT product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to load order items",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
