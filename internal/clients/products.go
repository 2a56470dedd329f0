package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/models"
)

var (
	// ErrValidationTimeout means the products service did not answer
	// within the configured window.
	ErrValidationTimeout = errors.New("product validation timed out")

	// ErrValidationUnavailable means no products service is listening on
	// the validation subject.
	ErrValidationUnavailable = errors.New("products service unavailable")

	// ErrProductNotFound means one or more requested ids were absent from
	// the validation response.
	ErrProductNotFound = errors.New("product not found")
)

// ProductValidator resolves product ids against the products service.
// Ids unknown to that service are omitted from the result rather than
// erroring, so callers must check ProductSet.MissingFrom explicitly.
type ProductValidator interface {
	Validate(ctx context.Context, ids []uuid.UUID) (models.ProductSet, error)
}

// busRequester is the request/reply slice of *nats.Conn used here.
type busRequester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NATSProductValidator implements ProductValidator over NATS request/reply.
type NATSProductValidator struct {
	conn    busRequester
	subject string
	timeout time.Duration
	logger  *zap.Logger
}

// NewNATSProductValidator creates a NATS-based product validator.
func NewNATSProductValidator(conn *nats.Conn, cfg config.ProductsConfig, logger *zap.Logger) *NATSProductValidator {
	return newNATSProductValidator(conn, cfg, logger)
}

func newNATSProductValidator(conn busRequester, cfg config.ProductsConfig, logger *zap.Logger) *NATSProductValidator {
	return &NATSProductValidator{
		conn:    conn,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
		logger:  logger.Named("products-client"),
	}
}

var _ ProductValidator = (*NATSProductValidator)(nil)

// Validate sends the full id list in one request and indexes the response.
func (c *NATSProductValidator) Validate(ctx context.Context, ids []uuid.UUID) (models.ProductSet, error) {
	c.logger.Debug("Validating products", zap.Int("id_count", len(ids)))

	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(reqCtx, c.subject, payload)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
			c.logger.Error("Product validation timed out",
				zap.Duration("timeout", c.timeout),
				zap.Int("id_count", len(ids)),
			)
			return nil, ErrValidationTimeout
		case errors.Is(err, nats.ErrNoResponders):
			c.logger.Error("No responders on validation subject",
				zap.String("subject", c.subject),
			)
			return nil, ErrValidationUnavailable
		default:
			c.logger.Error("Product validation request failed", zap.Error(err))
			return nil, fmt.Errorf("product validation: %w", err)
		}
	}

	var products []models.Product
	if err := json.Unmarshal(msg.Data, &products); err != nil {
		c.logger.Error("Malformed validation response", zap.Error(err))
		return nil, fmt.Errorf("decode validation response: %w", err)
	}

	c.logger.Debug("Products validated",
		zap.Int("requested", len(ids)),
		zap.Int("resolved", len(products)),
	)

	return models.NewProductSet(products), nil
}
