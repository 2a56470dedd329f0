package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shopmesh/orders-service/internal/apperrors"
	"github.com/shopmesh/orders-service/internal/models"
	"github.com/shopmesh/orders-service/internal/service"
)

// Request payloads are validated before any service logic runs: unknown
// fields are rejected, declared fields are checked for presence and type,
// and ids must parse as UUIDs.

type createOrderRequest struct {
	Items []createOrderItem `json:"items" validate:"required,min=1,dive"`
}

type createOrderItem struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func (r createOrderRequest) toInput() []service.CreateOrderItem {
	items := make([]service.CreateOrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = service.CreateOrderItem{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		}
	}
	return items
}

type paginationRequest struct {
	Page   int    `json:"page" validate:"omitempty,gte=1"`
	Limit  int    `json:"limit" validate:"omitempty,gte=1"`
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED DELIVERED CANCELLED"`
}

func (r paginationRequest) toQuery() service.PageQuery {
	status := models.OrderStatus(r.Status)
	return service.PageQuery{
		Page:   r.Page,
		Limit:  r.Limit,
		Status: &status,
	}
}

type findOneRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type changeStatusRequest struct {
	ID     string `json:"id" validate:"required,uuid"`
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED DELIVERED CANCELLED"`
}

type orderIDRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

var validate = validator.New()

// decodeAndValidate strictly decodes payload into dst and runs struct
// validation, translating failures into field-level validation errors.
func decodeAndValidate(payload []byte, dst interface{}) *apperrors.Error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidation("payload", err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewValidation(fieldName(fe), validationMessage(fe))
		}
		return apperrors.NewValidation("payload", err.Error())
	}

	return nil
}

func fieldName(fe validator.FieldError) string {
	// Namespace is Struct.Field...; drop the struct prefix and lower-case
	// the leading segment to match the JSON shape.
	parts := strings.SplitN(fe.Namespace(), ".", 2)
	name := fe.Namespace()
	if len(parts) == 2 {
		name = parts[1]
	}
	if name == "" {
		return "payload"
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
