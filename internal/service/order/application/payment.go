// internal/service/order/application/payment.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// PaymentStage 消费 inventory-reserved，调用支付网关扣款。
// 网关是一个注入的布尔返回协作方；每次尝试受配置的支付超时约束。
type PaymentStage struct {
	gateway  port.PaymentGateway
	producer port.EventProducer
	tracer   trace.Tracer
	timeout  time.Duration
}

func NewPaymentStage(gateway port.PaymentGateway, producer port.EventProducer, tracer trace.Tracer, timeout time.Duration) *PaymentStage {
	return &PaymentStage{gateway: gateway, producer: producer, tracer: tracer, timeout: timeout}
}

func (h *PaymentStage) Process(ctx context.Context, event *domain.OrderEvent) error {
	ctx, span := h.tracer.Start(ctx, "stage.ProcessPayment")
	defer span.End()

	order := event.Order
	if order == nil {
		return &domain.PaymentError{Reason: "event carries no order snapshot"}
	}

	logger.Ctx(ctx).Info().
		Str("order_id", event.OrderID).
		Float64("amount", order.TotalAmount).
		Msg("Processing payment")

	chargeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	approved, err := h.gateway.Charge(chargeCtx, order)
	if err != nil {
		span.RecordError(err)
		return &domain.PaymentError{Reason: "Payment processing failed: " + err.Error()}
	}
	if !approved {
		return &domain.PaymentError{Reason: "Payment gateway declined the transaction"}
	}

	span.AddEvent("Payment approved")
	next := domain.NewOrderEvent(event.OrderID, order, domain.StatusPaymentProcessed, "Payment processed successfully", sourcePayment)
	if err := h.producer.PaymentProcessed(ctx, next); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish payment-processed event")
	}
	return nil
}
