// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
)

const serviceName = "order-service"

// OrderHandler 封装订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/orders", h.placeOrderHandler)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrderHandler)
}

type placeOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *OrderHandler) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.PlaceOrder")
	defer span.End()

	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	placed, err := h.service.PlaceOrder(ctx, &order)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to place order")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.String("order.id", placed.OrderID),
		attribute.String("messaging.system", "kafka"),
	)

	// 接收即返回：校验、扣库存、支付都在流水线里异步进行
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(placeOrderResponse{
		OrderID: placed.OrderID,
		Status:  string(placed.Status),
		Message: "Order accepted for processing",
	})
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}
