// internal/service/order/domain/port/notifier.go
package port

import (
	"context"

	"orderpipeline/internal/service/order/domain"
)

// NotificationProducer 把订单状态变化通知给客户，非关键路径：
// 发送失败由调用方记录日志，绝不让主流程失败。
type NotificationProducer interface {
	OrderUpdate(ctx context.Context, order *domain.Order, message string) error
}
