// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口，由基础设施层实现。
type OrderRepository interface {
	// Save 保存一个订单（创建或整体更新）。
	Save(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找订单，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)
}

// InventoryRepository 定义了商品库存记录的持久化接口。
//
// 对同一商品的 read-check-write 序列必须串行化（防止超卖），
// 这由调用方持有 port.ResourceLocker 提供的按商品互斥来保证。
type InventoryRepository interface {
	// FindByProductID 查找库存记录，不存在时返回 ErrProductNotFound。
	FindByProductID(ctx context.Context, productID string) (*ProductInventory, error)

	// Save 保存库存记录。
	Save(ctx context.Context, inventory *ProductInventory) error
}
