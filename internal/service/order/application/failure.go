// internal/service/order/application/failure.go
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// FailureHandler 是所有阶段失败分支的汇聚点。
//
// 它在订单快照上记录失败原因、把失败计数加一、持久化订单，然后发出一个
// 状态为 CANCELLED 的新信封：计数达到阈值走死信 topic，否则走 order-failed。
// 触发它的原始消息总是会被确认（由消费侧在 Handle 返回后提交 offset），
// 因此传输层不会重投这条消息——恢复完全依赖订单数据里携带的失败计数。
//
// Handle 自身不返回错误：失败处理内部的异常只记录日志，
// 避免失败处理再进失败处理的无限级联。
type FailureHandler struct {
	orders       domain.OrderRepository
	producer     port.EventProducer
	notifier     port.NotificationProducer
	tracer       trace.Tracer
	dlqThreshold int
}

func NewFailureHandler(orders domain.OrderRepository, producer port.EventProducer, notifier port.NotificationProducer, tracer trace.Tracer, dlqThreshold int) *FailureHandler {
	return &FailureHandler{orders: orders, producer: producer, notifier: notifier, tracer: tracer, dlqThreshold: dlqThreshold}
}

func (f *FailureHandler) Handle(ctx context.Context, event *domain.OrderEvent, procErr error) {
	ctx, span := f.tracer.Start(ctx, "stage.HandleFailure")
	defer span.End()
	span.RecordError(procErr)

	order := event.Order
	if order == nil {
		logger.Ctx(ctx).Error().Err(procErr).Str("order_id", event.OrderID).
			Msg("Cannot run failure handling: event carries no order snapshot")
		return
	}

	// 失败计数以持久化状态为准：重投的消息携带的是旧快照，
	// 计数必须从已落库的值继续累加，否则永远到不了死信阈值
	if persisted, err := f.orders.FindByID(ctx, event.OrderID); err == nil && persisted.RetryCount > order.RetryCount {
		order.RetryCount = persisted.RetryCount
	}
	order.RecordFailure(procErr.Error())
	if err := f.orders.Save(ctx, order); err != nil {
		// 落库失败也要继续发事件，失败信号不能丢
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to persist failed order")
	}

	failed := domain.NewOrderEvent(
		event.OrderID, order, domain.StatusCancelled,
		"Order processing failed: "+procErr.Error(), sourceErrorHandler,
	)

	if order.RetryCount >= f.dlqThreshold {
		if err := f.producer.DeadLetter(ctx, failed); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish dead-letter event")
		}
		logger.Ctx(ctx).Warn().
			Str("order_id", event.OrderID).
			Int("retry_count", order.RetryCount).
			Msg("🚨 Order moved to DLQ after exhausting retries")
	} else {
		if err := f.producer.OrderFailed(ctx, failed); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish order-failed event")
		}
		logger.Ctx(ctx).Error().
			Err(procErr).
			Str("order_id", event.OrderID).
			Int("retry_count", order.RetryCount).
			Msg("Order processing failed")
	}

	msg := fmt.Sprintf("Your order %s could not be processed: %s", order.OrderID, order.FailureReason)
	if err := f.notifier.OrderUpdate(ctx, order, msg); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish failure notification")
	}
}
