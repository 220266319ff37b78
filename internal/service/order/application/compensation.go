// internal/service/order/application/compensation.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// CompensationManager 在支付失败后归还库存预占。
//
// 支付失败分支会无条件调用它，不检查预占是否真的发生过，
// 所以 Release 必须是幂等的：库存记录不存在时静默跳过，
// 归还量不超过当前预占量——一次预占配一次归还后，
// available + reserved 的总量保持不变。
type CompensationManager struct {
	inventory domain.InventoryRepository
	locker    port.ResourceLocker
	tracer    trace.Tracer
}

func NewCompensationManager(inventory domain.InventoryRepository, locker port.ResourceLocker, tracer trace.Tracer) *CompensationManager {
	return &CompensationManager{inventory: inventory, locker: locker, tracer: tracer}
}

// Release 逐行归还订单的库存预占。单行补偿失败只记录日志，
// 不中断其余行的补偿，也绝不向调用方抛出。
func (m *CompensationManager) Release(ctx context.Context, order *domain.Order) {
	ctx, span := m.tracer.Start(ctx, "compensation.ReleaseInventory")
	defer span.End()

	logger.Ctx(ctx).Info().Str("order_id", order.OrderID).Msg("Releasing reserved inventory")

	for _, item := range order.Items {
		err := m.locker.WithLock(ctx, item.ProductID, func() error {
			inv, err := m.inventory.FindByProductID(ctx, item.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil // 无记录，空操作
			}
			if err != nil {
				return err
			}
			if released := inv.Release(item.Quantity); released == 0 {
				return nil // 从未预占，无需写回
			}
			return m.inventory.Save(ctx, inv)
		})
		if err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.OrderID).
				Str("product_id", item.ProductID).
				Msg("🚨 Compensation failed for product, manual intervention may be required")
			continue
		}

		logger.Ctx(ctx).Info().
			Str("product_id", item.ProductID).
			Int("quantity", item.Quantity).
			Msg("Released inventory units")
	}
}
