package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state. Any member is a legal target
// for a status change; no transition adjacency is enforced.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatusList enumerates every valid status value.
var OrderStatusList = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a member of the status enumeration.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatusList {
		if s == v {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts a raw string into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q, possible values are %v", raw, OrderStatusList)
	}
	return s, nil
}

// Order is a persisted purchase record aggregating one or more line items.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int             `json:"totalItems"`
	Items       []OrderItem     `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// OrderItem is a line item referencing an external product. Price is a
// snapshot taken at creation time, not a live reference. Name is attached
// from the products service for responses and never persisted.
type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name,omitempty"`
}

// Subtotal is the item contribution to the order total.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotals aggregates the order invariants over a set of items:
// totalAmount = sum(price * quantity), totalItems = sum(quantity).
func ComputeTotals(items []OrderItem) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.Subtotal())
		count += item.Quantity
	}
	return total, count
}
