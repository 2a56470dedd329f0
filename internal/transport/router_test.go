package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/metrics"
	"github.com/shopmesh/orders-service/internal/models"
	"github.com/shopmesh/orders-service/internal/repository"
	"github.com/shopmesh/orders-service/internal/service"
)

// Registered once; prometheus panics on duplicate metric registration.
var testMetrics = metrics.NewBusMetrics("orders_test")

type fakeRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeRepo) GetByIDWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeRepo) ListByStatus(ctx context.Context, filter repository.ListFilter) ([]*models.Order, int, error) {
	matched := make([]*models.Order, 0)
	for _, order := range f.orders {
		if filter.Status == nil || order.Status == *filter.Status {
			copied := *order
			matched = append(matched, &copied)
		}
	}
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order.Status = status
	copied := *order
	return &copied, nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) { return nil, nil }
func (noopCache) Set(ctx context.Context, order *models.Order) error           { return nil }
func (noopCache) Delete(ctx context.Context, id uuid.UUID) error               { return nil }

type fakeValidator struct {
	products []models.Product
}

func (f *fakeValidator) Validate(ctx context.Context, ids []uuid.UUID) (models.ProductSet, error) {
	return models.NewProductSet(f.products), nil
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return nil
}
func (noopPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return nil
}
func (noopPublisher) Close() error { return nil }

func newTestRouter(repo *fakeRepo, products ...models.Product) *Router {
	cfg := &config.Config{
		Pagination: config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
	}
	svc := service.NewOrderService(repo, noopCache{}, &fakeValidator{products: products}, noopPublisher{}, cfg, zap.NewNop())
	return NewRouter(svc, testMetrics, zap.NewNop())
}

type errorReply struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func decodeErrorReply(t *testing.T, data []byte) errorReply {
	t.Helper()
	var reply errorReply
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("Failed to decode error reply %s: %v", data, err)
	}
	return reply
}

func TestCreateOrderValidation(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	tests := []struct {
		name    string
		payload string
	}{
		{"empty payload", `{}`},
		{"empty items", `{"items":[]}`},
		{"missing quantity", fmt.Sprintf(`{"items":[{"productId":%q}]}`, uuid.New())},
		{"zero quantity", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":0}]}`, uuid.New())},
		{"negative quantity", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":-2}]}`, uuid.New())},
		{"malformed product id", `{"items":[{"productId":"not-a-uuid","quantity":1}]}`},
		{"unknown field", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":1}],"extra":true}`, uuid.New())},
		{"unknown item field", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":1,"price":5}]}`, uuid.New())},
		{"not json", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternCreateOrder, []byte(tt.payload)))
			if reply.Status != 400 {
				t.Errorf("Expected status 400, got %d (%s)", reply.Status, reply.Message)
			}
			if reply.Message == "" {
				t.Error("Expected a validation message")
			}
		})
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	productID := uuid.New()
	repo := newFakeRepo()
	router := newTestRouter(repo, models.Product{
		ID:    productID,
		Name:  "Widget",
		Price: decimal.RequireFromString("10.50"),
	})

	payload := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":2}]}`, productID)
	data := router.Dispatch(context.Background(), PatternCreateOrder, []byte(payload))

	var order struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		TotalAmount string `json:"totalAmount"`
		TotalItems  int    `json:"totalItems"`
		Items       []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
			Price     string `json:"price"`
			Name      string `json:"name"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &order); err != nil {
		t.Fatalf("Failed to decode reply %s: %v", data, err)
	}

	if order.Status != "PENDING" {
		t.Errorf("Expected status PENDING, got %s", order.Status)
	}
	if order.TotalAmount != "21.00" {
		t.Errorf("Expected totalAmount 21.00, got %s", order.TotalAmount)
	}
	if order.TotalItems != 2 {
		t.Errorf("Expected totalItems 2, got %d", order.TotalItems)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "Widget" {
		t.Errorf("Expected one item enriched with name 'Widget', got %+v", order.Items)
	}
	if len(repo.orders) != 1 {
		t.Errorf("Expected one persisted order, got %d", len(repo.orders))
	}
}

func TestCreateOrderUnknownProductIsCollapsed(t *testing.T) {
	// No products resolve, so the create must fail with the generic
	// bad-request reply, never a partial total.
	repo := newFakeRepo()
	router := newTestRouter(repo)

	payload := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":1}]}`, uuid.New())
	reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternCreateOrder, []byte(payload)))

	if reply.Status != 400 {
		t.Errorf("Expected status 400, got %d", reply.Status)
	}
	if reply.Message != "Invalid request, check logs" {
		t.Errorf("Expected collapsed message, got %q", reply.Message)
	}
	if len(repo.orders) != 0 {
		t.Error("Expected nothing persisted")
	}
}

func TestFindOneOrderNotFound(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	orderID := uuid.New()
	payload := fmt.Sprintf(`{"id":%q}`, orderID)
	reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternFindOneOrder, []byte(payload)))

	if reply.Status != 404 {
		t.Errorf("Expected status 404, got %d", reply.Status)
	}
	if want := fmt.Sprintf("Order with id %s not found", orderID); reply.Message != want {
		t.Errorf("Expected %q, got %q", want, reply.Message)
	}
}

func TestFindOneOrderRejectsMalformedID(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternFindOneOrder, []byte(`{"id":"123"}`)))
	if reply.Status != 400 {
		t.Errorf("Expected status 400, got %d", reply.Status)
	}
}

func TestFindAllOrdersRequiresKnownStatus(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	for _, payload := range []string{
		`{"page":1,"limit":10}`,
		`{"page":1,"limit":10,"status":"SHIPPED"}`,
		`{"page":-1,"limit":10,"status":"PENDING"}`,
		`{"page":1,"limit":-5,"status":"PENDING"}`,
	} {
		reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternFindAllOrders, []byte(payload)))
		if reply.Status != 400 {
			t.Errorf("Payload %s: expected status 400, got %d", payload, reply.Status)
		}
	}
}

func TestFindAllOrdersPaginates(t *testing.T) {
	productID := uuid.New()
	repo := newFakeRepo()
	router := newTestRouter(repo, models.Product{
		ID:    productID,
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
	})

	createPayload := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":1}]}`, productID)
	for i := 0; i < 3; i++ {
		router.Dispatch(context.Background(), PatternCreateOrder, []byte(createPayload))
	}

	// Both list patterns route to the same operation.
	for _, pattern := range []string{PatternFindAllOrders, PatternFindAllByStatus} {
		data := router.Dispatch(context.Background(), pattern, []byte(`{"page":1,"limit":2,"status":"PENDING"}`))

		var page struct {
			Data []json.RawMessage `json:"data"`
			Meta struct {
				Total    int `json:"total"`
				Page     int `json:"page"`
				LastPage int `json:"lastPage"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("Pattern %s: failed to decode reply %s: %v", pattern, data, err)
		}

		if page.Meta.Total != 3 {
			t.Errorf("Pattern %s: expected total 3, got %d", pattern, page.Meta.Total)
		}
		if page.Meta.LastPage != 2 {
			t.Errorf("Pattern %s: expected lastPage 2, got %d", pattern, page.Meta.LastPage)
		}
		if len(page.Data) != 2 {
			t.Errorf("Pattern %s: expected 2 orders on page, got %d", pattern, len(page.Data))
		}
	}
}

func TestChangeStatusOrders(t *testing.T) {
	productID := uuid.New()
	repo := newFakeRepo()
	router := newTestRouter(repo, models.Product{
		ID:    productID,
		Name:  "Widget",
		Price: decimal.RequireFromString("1.00"),
	})

	createPayload := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":1}]}`, productID)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(router.Dispatch(context.Background(), PatternCreateOrder, []byte(createPayload)), &created); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	payload := fmt.Sprintf(`{"id":%q,"status":"CANCELLED"}`, created.ID)
	data := router.Dispatch(context.Background(), PatternChangeStatusOrders, []byte(payload))

	var updated struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("Failed to decode reply %s: %v", data, err)
	}
	if updated.Status != "CANCELLED" {
		t.Errorf("Expected status CANCELLED, got %s", updated.Status)
	}

	reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternChangeStatusOrders, []byte(`{"id":"abc","status":"DONE"}`)))
	if reply.Status != 400 {
		t.Errorf("Expected status 400 for malformed payload, got %d", reply.Status)
	}
}

func TestChangeOrderStatusStubAlwaysNotImplemented(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	for _, payload := range []string{
		`{}`,
		fmt.Sprintf(`{"id":%q,"status":"PENDING"}`, uuid.New()),
		`garbage`,
	} {
		reply := decodeErrorReply(t, router.Dispatch(context.Background(), PatternChangeOrderStatus, []byte(payload)))
		if reply.Status != 501 {
			t.Errorf("Payload %s: expected status 501, got %d", payload, reply.Status)
		}
		if reply.Message != "Not Implemented" {
			t.Errorf("Payload %s: expected 'Not Implemented', got %q", payload, reply.Message)
		}
	}
}

func TestUpdateAndRemoveOrderPlaceholders(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	id := uuid.New()
	payload := fmt.Sprintf(`{"id":%q}`, id)

	var updateReply string
	if err := json.Unmarshal(router.Dispatch(context.Background(), PatternUpdateOrder, []byte(payload)), &updateReply); err != nil {
		t.Fatalf("Failed to decode update reply: %v", err)
	}
	if want := fmt.Sprintf("This action updates a #%s order", id); updateReply != want {
		t.Errorf("Expected %q, got %q", want, updateReply)
	}

	var removeReply string
	if err := json.Unmarshal(router.Dispatch(context.Background(), PatternRemoveOrder, []byte(payload)), &removeReply); err != nil {
		t.Fatalf("Failed to decode remove reply: %v", err)
	}
	if want := fmt.Sprintf("This action removes a #%s order", id); removeReply != want {
		t.Errorf("Expected %q, got %q", want, removeReply)
	}
}

func TestDispatchUnknownPattern(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	reply := decodeErrorReply(t, router.Dispatch(context.Background(), "noSuchPattern", []byte(`{}`)))
	if reply.Status != 404 {
		t.Errorf("Expected status 404, got %d", reply.Status)
	}
}
