// internal/service/order/domain/port/payment.go
package port

import (
	"context"

	"orderpipeline/internal/service/order/domain"
)

// PaymentGateway 是支付网关的出站端口。
// 返回 (false, nil) 表示网关明确拒绝了交易；
// 返回非 nil error 表示调用本身失败（超时、网络等）。
type PaymentGateway interface {
	Charge(ctx context.Context, order *domain.Order) (bool, error)
}
