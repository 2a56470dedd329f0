package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/models"
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// OrderEvent represents an order-related event.
type OrderEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   uuid.UUID       `json:"order_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.OrdersTopic,
		logger: logger.Named("event-publisher"),
	}
}

var _ OrderEventPublisher = (*KafkaPublisher)(nil)

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.publish(ctx, newEvent(EventTypeOrderCreated, order.ID, data))
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	payload := struct {
		Order          *models.Order      `json:"order"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
		NewStatus      models.OrderStatus `json:"new_status"`
	}{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.publish(ctx, newEvent(EventTypeOrderStatusChanged, order.ID, data))
}

func newEvent(eventType EventType, orderID uuid.UUID, data []byte) *OrderEvent {
	return &OrderEvent{
		ID:        uuid.New(),
		Type:      eventType,
		OrderID:   orderID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Event published",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", event.OrderID.String()),
	)

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
