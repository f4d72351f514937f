package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

type mockOrderUseCase struct {
	CreateFunc       func(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error)
	UpdateFunc       func(ctx context.Context, id int64, spec domain.OrderSpec) (*domain.Order, error)
	ReplaceLinesFunc func(ctx context.Context, id int64, lines []domain.LineSpec) (*domain.Order, error)
	DeleteFunc       func(ctx context.Context, id int64) error
	GetFunc          func(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumberFunc  func(ctx context.Context, number string) (*domain.Order, error)
	ListFunc         func(ctx context.Context) ([]domain.Order, error)
}

func (m *mockOrderUseCase) Create(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
	return m.CreateFunc(ctx, spec)
}

func (m *mockOrderUseCase) Update(ctx context.Context, id int64, spec domain.OrderSpec) (*domain.Order, error) {
	return m.UpdateFunc(ctx, id, spec)
}

func (m *mockOrderUseCase) ReplaceLines(ctx context.Context, id int64, lines []domain.LineSpec) (*domain.Order, error) {
	return m.ReplaceLinesFunc(ctx, id, lines)
}

func (m *mockOrderUseCase) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockOrderUseCase) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockOrderUseCase) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return m.GetByNumberFunc(ctx, number)
}

func (m *mockOrderUseCase) List(ctx context.Context) ([]domain.Order, error) {
	return m.ListFunc(ctx)
}

type mockClientOrderUseCase struct {
	ListByClientFunc        func(ctx context.Context, clientID int64) ([]domain.Order, error)
	LinesForClientOrderFunc func(ctx context.Context, clientID, orderID int64) ([]domain.OrderLine, error)
}

func (m *mockClientOrderUseCase) ListByClient(ctx context.Context, clientID int64) ([]domain.Order, error) {
	return m.ListByClientFunc(ctx, clientID)
}

func (m *mockClientOrderUseCase) LinesForClientOrder(ctx context.Context, clientID, orderID int64) ([]domain.OrderLine, error) {
	return m.LinesForClientOrderFunc(ctx, clientID, orderID)
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:              1,
		Number:          "CMD-1",
		ClientID:        1,
		DeliveryAddress: &domain.Address{ID: 2, StreetNumber: 12, Street: "Rue de Rivoli", City: "Paris", PostalCode: "75001", Country: "France"},
		Status:          domain.OrderStatusPending,
		Lines: []domain.OrderLine{{
			ID: 3, OrderID: 1, ProductID: 1, ProductLabel: "Café", Quantity: 2,
			UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("10.0")),
			Amount:    decimal.NewFromInt(20),
		}},
		TotalAmount: decimal.NewFromInt(20),
	}
}

func newRouter(uc *mockOrderUseCase, cuc *mockClientOrderUseCase) http.Handler {
	oc := NewOrderController(uc, zap.NewNop())
	cc := NewClientOrderController(cuc, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/orders", oc.Create)
	r.Get("/orders", oc.List)
	r.Get("/orders/number/{number}", oc.GetByNumber)
	r.Get("/orders/{id}", oc.Get)
	r.Put("/orders/{id}", oc.Update)
	r.Put("/orders/{id}/lines", oc.ReplaceLines)
	r.Delete("/orders/{id}", oc.Delete)
	r.Get("/clients/{clientId}/orders", cc.ListOrders)
	r.Get("/clients/{clientId}/orders/{orderId}/products", cc.ListOrderLines)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestOrderController_Create(t *testing.T) {
	uc := &mockOrderUseCase{
		CreateFunc: func(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
			require.NotNil(t, spec.ClientID)
			assert.Equal(t, int64(1), *spec.ClientID)
			assert.True(t, spec.LinesProvided)
			require.Len(t, spec.Lines, 1)
			assert.Equal(t, 2, *spec.Lines[0].Quantity)
			assert.Equal(t, "Paris", spec.DeliveryAddress.City)
			return sampleOrder(), nil
		},
	}

	body := `{"clientId":1,"deliveryAddress":{"streetNumber":12,"street":"Rue de Rivoli","city":"Paris","postalCode":"75001","country":"France"},"lines":[{"productId":1,"quantity":2}]}`
	rec, resp := do(t, newRouter(uc, nil), http.MethodPost, "/orders", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "CMD-1", resp["orderNumber"])
	assert.Equal(t, "20", resp["totalAmount"])
	lines := resp["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, "10", lines[0].(map[string]any)["unitPrice"])
}

func TestOrderController_Create_InvalidJSON(t *testing.T) {
	uc := &mockOrderUseCase{}

	rec, resp := do(t, newRouter(uc, nil), http.MethodPost, "/orders", `{"clientId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp["error"])
	assert.NotEmpty(t, resp["traceId"])
}

func TestOrderController_Create_InvalidStatus(t *testing.T) {
	uc := &mockOrderUseCase{}

	rec, resp := do(t, newRouter(uc, nil), http.MethodPost, "/orders", `{"clientId":1,"status":"LOST"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details := resp["details"].([]any)
	assert.Equal(t, "status", details[0].(map[string]any)["field"])
}

func TestOrderController_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: apperrors.NewValidationError("order must contain at least one line"), status: http.StatusBadRequest},
		{name: "not found", err: apperrors.NewNotFoundError("order not found"), status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "forbidden", err: apperrors.NewForbiddenError("nope"), status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "conflict", err: apperrors.NewConflictError("duplicate order number"), status: http.StatusConflict, code: "CONFLICT"},
		{name: "deadlock", err: apperrors.NewDeadlockError("max retries exceeded"), status: http.StatusConflict, code: "DEADLOCK"},
		{name: "insufficient stock", err: apperrors.NewInsufficientStockError(1, "Café", 1, 2), status: http.StatusConflict, code: "INSUFFICIENT_STOCK"},
		{name: "product not found", err: apperrors.NewProductNotFoundError(9), status: http.StatusBadGateway, code: "PRODUCT_NOT_FOUND"},
		{name: "catalog unavailable", err: apperrors.NewCatalogUnavailableError(1, errors.New("refused")), status: http.StatusBadGateway, code: "CATALOG_UNAVAILABLE"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockOrderUseCase{
				GetFunc: func(ctx context.Context, id int64) (*domain.Order, error) {
					return nil, tt.err
				},
			}

			rec, resp := do(t, newRouter(uc, nil), http.MethodGet, "/orders/5", "")

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, resp["code"])
				assert.Equal(t, float64(tt.status), resp["status"])
			}
		})
	}
}

func TestOrderController_Get_InvalidID(t *testing.T) {
	uc := &mockOrderUseCase{}

	for _, target := range []string{"/orders/abc", "/orders/0", "/orders/-1"} {
		rec, resp := do(t, newRouter(uc, nil), http.MethodGet, target, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "invalid id", resp["message"], target)
	}
}

func TestOrderController_GetByNumber(t *testing.T) {
	uc := &mockOrderUseCase{
		GetByNumberFunc: func(ctx context.Context, number string) (*domain.Order, error) {
			assert.Equal(t, "CMD-1", number)
			return sampleOrder(), nil
		},
	}

	rec, resp := do(t, newRouter(uc, nil), http.MethodGet, "/orders/number/CMD-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), resp["id"])
}

func TestOrderController_List(t *testing.T) {
	uc := &mockOrderUseCase{
		ListFunc: func(ctx context.Context) ([]domain.Order, error) {
			return []domain.Order{*sampleOrder(), *sampleOrder()}, nil
		},
	}

	rec, _ := do(t, newRouter(uc, nil), http.MethodGet, "/orders", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 2)
}

func TestOrderController_Update_LinesAbsent(t *testing.T) {
	uc := &mockOrderUseCase{
		UpdateFunc: func(ctx context.Context, id int64, spec domain.OrderSpec) (*domain.Order, error) {
			assert.Equal(t, int64(5), id)
			assert.False(t, spec.LinesProvided)
			require.NotNil(t, spec.Status)
			assert.Equal(t, domain.OrderStatusShipped, *spec.Status)
			return sampleOrder(), nil
		},
	}

	rec, _ := do(t, newRouter(uc, nil), http.MethodPut, "/orders/5", `{"status":"SHIPPED"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderController_ReplaceLines(t *testing.T) {
	uc := &mockOrderUseCase{
		ReplaceLinesFunc: func(ctx context.Context, id int64, lines []domain.LineSpec) (*domain.Order, error) {
			assert.Equal(t, int64(5), id)
			require.Len(t, lines, 1)
			assert.Equal(t, "Thé", *lines[0].ProductLabel)
			assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("4.5")))
			return sampleOrder(), nil
		},
	}

	rec, _ := do(t, newRouter(uc, nil), http.MethodPut, "/orders/5/lines", `{"lines":[{"productId":9,"productLabel":"Thé","quantity":2,"unitPrice":4.5}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderController_Delete(t *testing.T) {
	var deleted int64
	uc := &mockOrderUseCase{
		DeleteFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}

	rec, _ := do(t, newRouter(uc, nil), http.MethodDelete, "/orders/7", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(7), deleted)
}

func TestClientOrderController_ListOrders(t *testing.T) {
	cuc := &mockClientOrderUseCase{
		ListByClientFunc: func(ctx context.Context, clientID int64) ([]domain.Order, error) {
			assert.Equal(t, int64(1), clientID)
			return []domain.Order{}, nil
		},
	}

	rec, _ := do(t, newRouter(nil, cuc), http.MethodGet, "/clients/1/orders", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestClientOrderController_ListOrderLines(t *testing.T) {
	cuc := &mockClientOrderUseCase{
		LinesForClientOrderFunc: func(ctx context.Context, clientID, orderID int64) ([]domain.OrderLine, error) {
			if clientID != 1 {
				return nil, apperrors.NewForbiddenError("order does not belong to this client")
			}
			return sampleOrder().Lines, nil
		},
	}
	router := newRouter(nil, cuc)

	rec, _ := do(t, router, http.MethodGet, "/clients/1/orders/1/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var lines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "Café", lines[0]["productLabel"])

	rec, _ = do(t, router, http.MethodGet, "/clients/2/orders/1/products", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
