package application_test

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/service/order/domain"
)

func testTopics() bootstrap.Topics {
	return bootstrap.Topics{
		OrderPlaced:       "order-placed",
		OrderValidated:    "order-validated",
		InventoryReserved: "inventory-reserved",
		PaymentProcessed:  "payment-processed",
		OrderConfirmed:    "order-confirmed",
		OrderFailed:       "order-failed",
		DLQOrders:         "dlq-orders",
		Notifications:     "notifications",
	}
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func testOrder() *domain.Order {
	order := &domain.Order{
		CustomerID:      "CUST-1",
		CustomerEmail:   "cust-1@example.com",
		Items:           []domain.OrderItem{{ProductID: "PROD-1", Quantity: 2, Price: 25}},
		TotalAmount:     50,
		ShippingAddress: "1 Test Street",
	}
	order.Place("ORD-1")
	return order
}

func placedEvent(order *domain.Order) *domain.OrderEvent {
	return domain.NewOrderEvent(order.OrderID, order, domain.StatusPlaced, "Order placed successfully", "OrderReceiver")
}

// recordingNotifier 收集通知消息供断言。
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) OrderUpdate(_ context.Context, _ *domain.Order, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// gatewayFunc 让测试用一个函数充当支付网关。
type gatewayFunc func(ctx context.Context, order *domain.Order) (bool, error)

func (f gatewayFunc) Charge(ctx context.Context, order *domain.Order) (bool, error) {
	return f(ctx, order)
}
