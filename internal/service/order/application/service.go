// internal/service/order/application/service.go
package application

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// 各组件在事件信封上的署名。
const (
	sourceReceiver     = "OrderReceiver"
	sourceValidator    = "OrderValidator"
	sourceInventory    = "InventoryManager"
	sourcePayment      = "PaymentProcessor"
	sourceCoordinator  = "OrderCoordinator"
	sourceErrorHandler = "ErrorHandler"
)

// OrderApplicationService 是订单的入口用例：接单和查询。
// 接单只做三件事：分配ID并落库、发布 order-placed 事件、立即返回。
// 后续所有阶段都是异步的，失败只能通过订单的持久化状态观察到。
type OrderApplicationService struct {
	orders   domain.OrderRepository
	producer port.EventProducer
	tracer   trace.Tracer
}

func NewOrderApplicationService(orders domain.OrderRepository, producer port.EventProducer, tracer trace.Tracer) *OrderApplicationService {
	return &OrderApplicationService{orders: orders, producer: producer, tracer: tracer}
}

// PlaceOrder 接受一个新订单：没有ID时分配一个，置为 PLACED，持久化，
// 然后发布初始事件。落库和发布是两个独立的非原子步骤（没有 outbox），
// 两步之间崩溃会留下一个已落库但未进入流水线的订单——设计上接受这个缺口。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()

	orderID := order.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}
	order.Place(orderID)

	if err := s.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save placed order")
		return nil, err
	}

	event := domain.NewOrderEvent(orderID, order, domain.StatusPlaced, "Order placed successfully", sourceReceiver)
	if err := s.producer.OrderPlaced(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish order-placed event")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("customer_id", order.CustomerID).
		Msg("Order accepted and enqueued for processing")
	return order, nil
}

// GetOrder 按ID查询订单，不存在时返回 domain.ErrOrderNotFound。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	return s.orders.FindByID(ctx, orderID)
}
