// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"
)

// Order 是订单聚合的根实体。orderId 在入口处分配，此后不再变化。
// RetryCount 只允许 FailureHandler 通过 RecordFailure 修改。
type Order struct {
	OrderID         string      `json:"orderId"`
	CustomerID      string      `json:"customerId"`
	CustomerEmail   string      `json:"customerEmail"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"totalAmount"`
	ShippingAddress string      `json:"shippingAddress"`
	Status          OrderStatus `json:"status"`
	FailureReason   string      `json:"failureReason,omitempty"`
	RetryCount      int         `json:"retryCount"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderItem 是订单行的值对象。
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Place 初始化一个刚进入系统的订单。
func (o *Order) Place(orderID string) {
	o.OrderID = orderID
	o.Status = StatusPlaced
	o.RetryCount = 0
	o.FailureReason = ""
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
}

// MarkValidated 将订单从 PLACED 推进到 VALIDATED。
func (o *Order) MarkValidated() error {
	if o.Status != StatusPlaced {
		return errors.New("order can only be validated from PLACED state")
	}
	o.Status = StatusValidated
	o.UpdatedAt = time.Now()
	return nil
}

// MarkConfirmed 将订单置为终态 CONFIRMED。
func (o *Order) MarkConfirmed() {
	o.Status = StatusConfirmed
	o.UpdatedAt = time.Now()
}

// RecordFailure 记录一次处理失败：写入失败原因、失败计数加一、订单进入 CANCELLED。
// 这是 RetryCount 唯一的修改入口，调用方只应是 FailureHandler。
func (o *Order) RecordFailure(reason string) {
	o.FailureReason = reason
	o.RetryCount++
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
}
