package clients

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/models"
)

type fakeRequester struct {
	respond func(subj string, data []byte) (*nats.Msg, error)

	gotSubject string
	gotData    []byte
}

func (f *fakeRequester) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	f.gotSubject = subj
	f.gotData = data
	return f.respond(subj, data)
}

func testProductsConfig() config.ProductsConfig {
	return config.ProductsConfig{
		Subject: "validate_product",
		Timeout: 100 * time.Millisecond,
	}
}

func TestValidateBuildsProductSet(t *testing.T) {
	widgetID := uuid.New()
	gadgetID := uuid.New()

	requester := &fakeRequester{respond: func(subj string, data []byte) (*nats.Msg, error) {
		response := []models.Product{
			{ID: widgetID, Name: "Widget", Price: decimal.RequireFromString("10.50")},
			{ID: gadgetID, Name: "Gadget", Price: decimal.RequireFromString("3.00")},
		}
		payload, _ := json.Marshal(response)
		return &nats.Msg{Data: payload}, nil
	}}

	client := newNATSProductValidator(requester, testProductsConfig(), zap.NewNop())

	products, err := client.Validate(context.Background(), []uuid.UUID{widgetID, gadgetID})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if requester.gotSubject != "validate_product" {
		t.Errorf("Expected subject 'validate_product', got %s", requester.gotSubject)
	}

	var sentIDs []uuid.UUID
	if err := json.Unmarshal(requester.gotData, &sentIDs); err != nil {
		t.Fatalf("Request payload is not an id list: %v", err)
	}
	if len(sentIDs) != 2 {
		t.Errorf("Expected 2 ids in request, got %d", len(sentIDs))
	}

	widget, ok := products.ByID(widgetID)
	if !ok {
		t.Fatal("Expected widget to resolve")
	}
	if widget.Name != "Widget" || !widget.Price.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("Unexpected product: %+v", widget)
	}
}

func TestValidateReportsPartialMatches(t *testing.T) {
	knownID := uuid.New()
	unknownID := uuid.New()

	requester := &fakeRequester{respond: func(subj string, data []byte) (*nats.Msg, error) {
		payload, _ := json.Marshal([]models.Product{
			{ID: knownID, Name: "Widget", Price: decimal.RequireFromString("1.00")},
		})
		return &nats.Msg{Data: payload}, nil
	}}

	client := newNATSProductValidator(requester, testProductsConfig(), zap.NewNop())

	ids := []uuid.UUID{knownID, unknownID}
	products, err := client.Validate(context.Background(), ids)
	if err != nil {
		t.Fatalf("Partial matches are not a transport error, got %v", err)
	}

	missing := products.MissingFrom(ids)
	if len(missing) != 1 || missing[0] != unknownID {
		t.Errorf("Expected %s to be reported missing, got %v", unknownID, missing)
	}
}

func TestValidateErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		respond func(subj string, data []byte) (*nats.Msg, error)
		want    error
	}{
		{
			name: "timeout",
			respond: func(string, []byte) (*nats.Msg, error) {
				return nil, nats.ErrTimeout
			},
			want: ErrValidationTimeout,
		},
		{
			name: "context deadline",
			respond: func(string, []byte) (*nats.Msg, error) {
				return nil, context.DeadlineExceeded
			},
			want: ErrValidationTimeout,
		},
		{
			name: "no responders",
			respond: func(string, []byte) (*nats.Msg, error) {
				return nil, nats.ErrNoResponders
			},
			want: ErrValidationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newNATSProductValidator(&fakeRequester{respond: tt.respond}, testProductsConfig(), zap.NewNop())

			_, err := client.Validate(context.Background(), []uuid.UUID{uuid.New()})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateRejectsMalformedResponse(t *testing.T) {
	requester := &fakeRequester{respond: func(string, []byte) (*nats.Msg, error) {
		return &nats.Msg{Data: []byte(`{"not":"a list"}`)}, nil
	}}

	client := newNATSProductValidator(requester, testProductsConfig(), zap.NewNop())

	if _, err := client.Validate(context.Background(), []uuid.UUID{uuid.New()}); err == nil {
		t.Error("Expected an error for a malformed response")
	}
}
