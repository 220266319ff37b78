// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderEvent 是各阶段之间传递的事件信封。
// 每次发布都会生成新的 EventID——即使是同一订单的重试，事件本身也是新的；
// 信封创建后不再修改，也不做持久化，只存在于传输层。
type OrderEvent struct {
	EventID       string      `json:"eventId"`
	OrderID       string      `json:"orderId"`
	Order         *Order      `json:"order"`
	Status        OrderStatus `json:"status"`
	Message       string      `json:"message"`
	Timestamp     time.Time   `json:"timestamp"`
	SourceService string      `json:"sourceService"`
}

// NewOrderEvent 创建一个新的事件信封，EventID 为新生成的 UUID。
func NewOrderEvent(orderID string, order *Order, status OrderStatus, message, sourceService string) *OrderEvent {
	return &OrderEvent{
		EventID:       uuid.New().String(),
		OrderID:       orderID,
		Order:         order,
		Status:        status,
		Message:       message,
		Timestamp:     time.Now(),
		SourceService: sourceService,
	}
}

// NotificationEvent 是发给通知链路的消息，非关键路径。
type NotificationEvent struct {
	CustomerID    string `json:"customerId"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	OrderID       string `json:"orderId"`
	Message       string `json:"message"`
}
