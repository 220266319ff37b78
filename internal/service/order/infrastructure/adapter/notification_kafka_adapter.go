// internal/service/order/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/service/order/domain"
)

// NotificationKafkaAdapter 实现 port.NotificationProducer，
// 把订单状态通知写入 notifications topic，由通知路由服务消费。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

func (a *NotificationKafkaAdapter) OrderUpdate(ctx context.Context, order *domain.Order, message string) error {
	event := domain.NotificationEvent{
		CustomerID:    order.CustomerID,
		CustomerEmail: order.CustomerEmail,
		OrderID:       order.OrderID,
		Message:       message,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification event")
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(order.CustomerID), payload)
}

func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
