package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/infrastructure"
)

func newTestMux(t *testing.T) (*http.ServeMux, *infrastructure.MemoryOrderRepository) {
	t.Helper()
	orders := infrastructure.NewMemoryOrderRepository()
	bus := infrastructure.NewMemoryBus(bootstrap.Topics{OrderPlaced: "order-placed"})
	service := application.NewOrderApplicationService(orders, bus, noop.NewTracerProvider().Tracer("test"))

	mux := http.NewServeMux()
	NewOrderHandler(service).RegisterRoutes(mux)
	return mux, orders
}

func TestPlaceOrderEndpointAcceptsOrder(t *testing.T) {
	mux, orders := newTestMux(t)

	body := `{"customerId":"CUST-1","items":[{"productId":"PROD-1","quantity":2,"price":25}],"totalAmount":50}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var resp placeOrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID == "" {
		t.Error("response missing orderId")
	}
	if resp.Status != string(domain.StatusPlaced) {
		t.Errorf("status = %q, want PLACED", resp.Status)
	}

	if _, err := orders.FindByID(req.Context(), resp.OrderID); err != nil {
		t.Errorf("order not persisted: %v", err)
	}
}

func TestPlaceOrderEndpointRejectsMalformedBody(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	mux, orders := newTestMux(t)

	order := &domain.Order{CustomerID: "CUST-1", TotalAmount: 50}
	order.Place("ORD-42")
	if err := orders.Save(httptest.NewRequest(http.MethodGet, "/", nil).Context(), order); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/ORD-42", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.OrderID != "ORD-42" || got.Status != domain.StatusPlaced {
		t.Errorf("got order %+v", got)
	}
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
