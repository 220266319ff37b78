// internal/service/order/infrastructure/adapter/payment_sim_adapter.go
package adapter

import (
	"context"
	"math/rand"
	"sync"

	"orderpipeline/internal/service/order/domain"
)

// PaymentSimAdapter 模拟支付网关，按固定成功率放行。
// 没有配置真实网关地址时作为本地演练的默认实现。
type PaymentSimAdapter struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

func NewPaymentSimAdapter(successRate float64, seed int64) *PaymentSimAdapter {
	return &PaymentSimAdapter{
		rng:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

func (a *PaymentSimAdapter) Charge(_ context.Context, _ *domain.Order) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64() < a.successRate, nil
}
