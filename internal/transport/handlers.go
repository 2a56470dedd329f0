package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/shopmesh/orders-service/internal/apperrors"
	"github.com/shopmesh/orders-service/internal/models"
)

func (r *Router) handleCreateOrder(ctx context.Context, payload []byte) (interface{}, error) {
	var req createOrderRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.Create(ctx, req.toInput())
}

func (r *Router) handleFindAll(ctx context.Context, payload []byte) (interface{}, error) {
	var req paginationRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.FindAll(ctx, req.toQuery())
}

func (r *Router) handleFindOne(ctx context.Context, payload []byte) (interface{}, error) {
	var req findOneRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.FindOne(ctx, uuid.MustParse(req.ID))
}

func (r *Router) handleChangeStatus(ctx context.Context, payload []byte) (interface{}, error) {
	var req changeStatusRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.ChangeStatus(ctx, uuid.MustParse(req.ID), models.OrderStatus(req.Status))
}

func (r *Router) handleUpdate(ctx context.Context, payload []byte) (interface{}, error) {
	var req orderIDRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.Update(uuid.MustParse(req.ID)), nil
}

func (r *Router) handleRemove(ctx context.Context, payload []byte) (interface{}, error) {
	var req orderIDRequest
	if err := decodeAndValidate(payload, &req); err != nil {
		return nil, err
	}
	return r.svc.Remove(uuid.MustParse(req.ID)), nil
}

// handleChangeOrderStatusStub is the intentionally unimplemented binding.
// It fails with a distinct not-implemented error regardless of payload.
func (r *Router) handleChangeOrderStatusStub(ctx context.Context, payload []byte) (interface{}, error) {
	return nil, apperrors.ErrNotImplemented
}
