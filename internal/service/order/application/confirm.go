// internal/service/order/application/confirm.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// ConfirmStage 消费 payment-processed，将订单置为终态 CONFIRMED 并落库。
// 这是流水线的最后一个阶段，唯一的失败条件是持久化失败。
type ConfirmStage struct {
	orders   domain.OrderRepository
	producer port.EventProducer
	notifier port.NotificationProducer
	tracer   trace.Tracer
}

func NewConfirmStage(orders domain.OrderRepository, producer port.EventProducer, notifier port.NotificationProducer, tracer trace.Tracer) *ConfirmStage {
	return &ConfirmStage{orders: orders, producer: producer, notifier: notifier, tracer: tracer}
}

func (h *ConfirmStage) Process(ctx context.Context, event *domain.OrderEvent) error {
	ctx, span := h.tracer.Start(ctx, "stage.ConfirmOrder")
	defer span.End()

	order := event.Order
	if order == nil {
		return errors.New("event carries no order snapshot")
	}

	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Msg("Confirming order")

	order.MarkConfirmed()
	if err := h.orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to persist confirmed order")
	}

	next := domain.NewOrderEvent(event.OrderID, order, domain.StatusConfirmed, "Order confirmed successfully", sourceCoordinator)
	if err := h.producer.OrderConfirmed(ctx, next); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish order-confirmed event")
	}

	// 通知是非关键路径，失败只记录
	msg := fmt.Sprintf("Your order %s has been confirmed.", order.OrderID)
	if err := h.notifier.OrderUpdate(ctx, order, msg); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish confirmation notification")
	}

	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Msg("✅ Order confirmed")
	return nil
}
