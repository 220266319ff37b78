// internal/service/order/domain/port/producer.go
package port

import (
	"context"

	"orderpipeline/internal/service/order/domain"
)

// EventProducer 是出站事件端口，每个方法对应一个逻辑 topic。
// 实现方保证：同一订单ID的事件在单个 topic 内按发布顺序投递；
// 跨 topic 之间没有顺序保证。发布是 fire-and-forget 的，
// 传输层错误通过异步回调记录日志，不会阻塞调用方。
type EventProducer interface {
	OrderPlaced(ctx context.Context, event *domain.OrderEvent) error
	OrderValidated(ctx context.Context, event *domain.OrderEvent) error
	InventoryReserved(ctx context.Context, event *domain.OrderEvent) error
	PaymentProcessed(ctx context.Context, event *domain.OrderEvent) error
	OrderConfirmed(ctx context.Context, event *domain.OrderEvent) error
	OrderFailed(ctx context.Context, event *domain.OrderEvent) error
	DeadLetter(ctx context.Context, event *domain.OrderEvent) error
}
