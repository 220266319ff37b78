// internal/service/order/application/reserve.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
)

// ReserveStage 消费 order-validated，逐行预占库存。
// 每个商品的 read-check-write 都在该商品的锁内完成，防止并发订单超卖。
//
// 预占是逐行顺序应用的：第 2 行失败时，第 1 行的预占保持已生效状态，
// 本阶段不做回滚；完整的归还只发生在后续支付失败触发补偿时。
type ReserveStage struct {
	inventory domain.InventoryRepository
	locker    port.ResourceLocker
	producer  port.EventProducer
	tracer    trace.Tracer
}

func NewReserveStage(inventory domain.InventoryRepository, locker port.ResourceLocker, producer port.EventProducer, tracer trace.Tracer) *ReserveStage {
	return &ReserveStage{inventory: inventory, locker: locker, producer: producer, tracer: tracer}
}

func (h *ReserveStage) Process(ctx context.Context, event *domain.OrderEvent) error {
	ctx, span := h.tracer.Start(ctx, "stage.ReserveInventory")
	defer span.End()

	order := event.Order
	if order == nil {
		return &domain.InventoryError{Reason: "event carries no order snapshot"}
	}

	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Msg("Reserving inventory")

	for _, item := range order.Items {
		span.SetAttributes(attribute.String("product.id", item.ProductID), attribute.Int("quantity", item.Quantity))

		err := h.locker.WithLock(ctx, item.ProductID, func() error {
			inv, err := h.inventory.FindByProductID(ctx, item.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				return &domain.InventoryError{Reason: fmt.Sprintf("Product not found: %s", item.ProductID)}
			}
			if err != nil {
				return errors.Wrapf(err, "inventory lookup failed for product %s", item.ProductID)
			}
			if err := inv.Reserve(item.Quantity); err != nil {
				return err
			}
			return h.inventory.Save(ctx, inv)
		})
		if err != nil {
			span.RecordError(err)
			return err
		}

		logger.Ctx(ctx).Info().
			Str("product_id", item.ProductID).
			Int("quantity", item.Quantity).
			Msg("Reserved inventory units")
	}

	span.AddEvent("All items reserved")
	next := domain.NewOrderEvent(event.OrderID, order, domain.StatusInventoryReserved, "Inventory reserved successfully", sourceInventory)
	if err := h.producer.InventoryReserved(ctx, next); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish inventory-reserved event")
	}
	return nil
}
