package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/apperrors"
	"github.com/shopmesh/orders-service/internal/metrics"
	"github.com/shopmesh/orders-service/internal/service"
)

// Message patterns served by this service. Callers invoke an operation by
// publishing a request on the pattern subject and awaiting the reply.
const (
	PatternCreateOrder        = "createOrder"
	PatternFindAllOrders      = "findAllOrders"
	PatternFindAllByStatus    = "findAllOrdersByStatus"
	PatternFindOneOrder       = "findOneOrder"
	PatternChangeStatusOrders = "changeStatusOrders"
	PatternUpdateOrder        = "updateOrder"
	PatternRemoveOrder        = "removeOrder"
	PatternChangeOrderStatus  = "changeOrderStatus"
)

const queueGroup = "orders"

// handlerFunc handles one decoded request payload.
type handlerFunc func(ctx context.Context, payload []byte) (interface{}, error)

// Router binds message patterns to order service operations.
type Router struct {
	svc      *service.OrderService
	metrics  *metrics.BusMetrics
	logger   *zap.Logger
	handlers map[string]handlerFunc
	subs     []*nats.Subscription
}

// NewRouter creates a router with all patterns bound.
func NewRouter(svc *service.OrderService, m *metrics.BusMetrics, logger *zap.Logger) *Router {
	r := &Router{
		svc:     svc,
		metrics: m,
		logger:  logger.Named("transport"),
	}

	r.handlers = map[string]handlerFunc{
		PatternCreateOrder:        r.handleCreateOrder,
		PatternFindAllOrders:      r.handleFindAll,
		PatternFindAllByStatus:    r.handleFindAll,
		PatternFindOneOrder:       r.handleFindOne,
		PatternChangeStatusOrders: r.handleChangeStatus,
		PatternUpdateOrder:        r.handleUpdate,
		PatternRemoveOrder:        r.handleRemove,
		PatternChangeOrderStatus:  r.handleChangeOrderStatusStub,
	}

	return r
}

// Subscribe binds every pattern on the given connection. Subscriptions
// share a queue group so horizontally scaled instances split the load.
func (r *Router) Subscribe(conn *nats.Conn) error {
	for pattern := range r.handlers {
		pattern := pattern
		sub, err := conn.QueueSubscribe(pattern, queueGroup, func(msg *nats.Msg) {
			r.serve(pattern, msg)
		})
		if err != nil {
			return err
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("Pattern bound", zap.String("pattern", pattern))
	}
	return nil
}

// Drain unsubscribes all patterns, letting in-flight handlers finish.
func (r *Router) Drain() {
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil {
			r.logger.Warn("Failed to drain subscription",
				zap.String("subject", sub.Subject),
				zap.Error(err),
			)
		}
	}
}

func (r *Router) serve(pattern string, msg *nats.Msg) {
	reply := r.Dispatch(context.Background(), pattern, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		r.logger.Error("Failed to send reply",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
	}
}

// Dispatch runs the handler bound to pattern and encodes its reply: the
// JSON result on success, or the {status, message} error shape.
func (r *Router) Dispatch(ctx context.Context, pattern string, payload []byte) []byte {
	start := time.Now()

	handler, ok := r.handlers[pattern]
	if !ok {
		// Unreachable for subscribed subjects; kept for direct callers.
		return encodeError(apperrors.NewNotFound("unknown pattern " + pattern))
	}

	result, err := handler(ctx, payload)
	if err != nil {
		appErr := apperrors.AsError(err)
		if appErr == nil {
			r.logger.Error("Handler returned unclassified error",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
			appErr = apperrors.ErrInternal
		}
		r.metrics.Observe(pattern, "error", time.Since(start))
		return encodeError(appErr)
	}

	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("Failed to encode reply",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		r.metrics.Observe(pattern, "error", time.Since(start))
		return encodeError(apperrors.ErrInternal)
	}

	r.metrics.Observe(pattern, "ok", time.Since(start))
	return data
}

func encodeError(appErr *apperrors.Error) []byte {
	data, err := json.Marshal(appErr)
	if err != nil {
		return []byte(`{"status":400,"message":"Invalid request, check logs"}`)
	}
	return data
}
