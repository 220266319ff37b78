// internal/service/order/application/validate.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// ValidateStage 消费 order-placed，校验订单字段。
// 校验失败是逻辑上的永久失败，但重试层并不区分——它会和瞬态错误
// 一样被重试满预算后进入失败路径。
type ValidateStage struct {
	orders   domain.OrderRepository
	producer port.EventProducer
	tracer   trace.Tracer
}

func NewValidateStage(orders domain.OrderRepository, producer port.EventProducer, tracer trace.Tracer) *ValidateStage {
	return &ValidateStage{orders: orders, producer: producer, tracer: tracer}
}

func (h *ValidateStage) Process(ctx context.Context, event *domain.OrderEvent) error {
	ctx, span := h.tracer.Start(ctx, "stage.Validate")
	defer span.End()

	order := event.Order
	if order == nil {
		return &domain.ValidationError{Reason: "event carries no order snapshot"}
	}

	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Msg("Validating order")

	if order.CustomerID == "" {
		return &domain.ValidationError{Reason: "Invalid customer ID"}
	}
	if len(order.Items) == 0 {
		return &domain.ValidationError{Reason: "Order must contain items"}
	}
	if order.TotalAmount <= 0 {
		return &domain.ValidationError{Reason: "Invalid order total"}
	}

	if err := order.MarkValidated(); err != nil {
		return &domain.ValidationError{Reason: err.Error()}
	}
	if err := h.orders.Save(ctx, order); err != nil {
		return errors.Wrap(err, "failed to save validated order")
	}
	span.AddEvent("Order validated and saved")

	next := domain.NewOrderEvent(event.OrderID, order, domain.StatusValidated, "Order validation successful", sourceValidator)
	if err := h.producer.OrderValidated(ctx, next); err != nil {
		// 发布失败不阻塞流程：本地状态已提交，事件缺口由 at-least-once 语义兜底
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish order-validated event")
	}
	return nil
}
