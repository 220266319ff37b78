// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 仓储层的哨兵错误。
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)

// 错误分类：校验失败（逻辑上是永久性的）、库存失败（本次尝试内终结）、
// 支付失败（可能是瞬态的）。注意：本地重试和跨阶段失败计数都不区分
// 这些类别——无效订单和网络抖动会走完全相同的重试预算（沿用原有行为）。

// ValidationError 表示订单字段校验失败。
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// InventoryError 表示库存检查或预占失败。
type InventoryError struct {
	Reason string
}

func (e *InventoryError) Error() string { return e.Reason }

// NewInsufficientInventoryError 构造库存不足错误，消息中带上水位信息便于排查。
func NewInsufficientInventoryError(productID string, available, requested int) *InventoryError {
	return &InventoryError{Reason: fmt.Sprintf(
		"Insufficient inventory for product: %s. Available: %d, Requested: %d",
		productID, available, requested,
	)}
}

// PaymentError 表示支付网关拒绝或调用失败。
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string { return e.Reason }
