// internal/service/order/domain/status.go
package domain

// OrderStatus 定义了订单的生命周期状态。
// 正常流转：PLACED → VALIDATED → INVENTORY_RESERVED → PAYMENT_PROCESSED → CONFIRMED；
// 任意阶段的不可恢复失败都会进入 CANCELLED。
//
// 三个 *_FAILED 状态是模型中保留的终态标签，当前失败路径统一发出 CANCELLED，
// 并不会实际落到这三个值上（沿用原有行为，见 FailureHandler）。
type OrderStatus string

const (
	StatusPlaced                      OrderStatus = "PLACED"
	StatusValidated                   OrderStatus = "VALIDATED"
	StatusValidationFailed            OrderStatus = "VALIDATION_FAILED"
	StatusInventoryReserved           OrderStatus = "INVENTORY_RESERVED"
	StatusInventoryReservationFailed  OrderStatus = "INVENTORY_RESERVATION_FAILED"
	StatusPaymentProcessed            OrderStatus = "PAYMENT_PROCESSED"
	StatusPaymentFailed               OrderStatus = "PAYMENT_FAILED"
	StatusConfirmed                   OrderStatus = "CONFIRMED"
	StatusCancelled                   OrderStatus = "CANCELLED"
)
