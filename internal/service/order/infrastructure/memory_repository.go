// internal/service/order/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sync"

	"orderpipeline/internal/service/order/domain"
)

// MemoryOrderRepository 是订单仓储的进程内实现，
// 在没有配置 MySQL 时作为退化选项，也是测试的默认仓储。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = cloneOrder(order)
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// MemoryInventoryRepository 是库存仓储的进程内实现。
type MemoryInventoryRepository struct {
	mu        sync.RWMutex
	inventory map[string]*domain.ProductInventory
}

func NewMemoryInventoryRepository() *MemoryInventoryRepository {
	return &MemoryInventoryRepository{inventory: make(map[string]*domain.ProductInventory)}
}

// Seed 预置一条库存记录，供演练和测试使用。
func (r *MemoryInventoryRepository) Seed(productID string, available, reserved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[productID] = &domain.ProductInventory{
		ProductID:         productID,
		AvailableQuantity: available,
		ReservedQuantity:  reserved,
	}
}

func (r *MemoryInventoryRepository) FindByProductID(_ context.Context, productID string) (*domain.ProductInventory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.inventory[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *inv
	return &c, nil
}

func (r *MemoryInventoryRepository) Save(_ context.Context, inventory *domain.ProductInventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *inventory
	r.inventory[inventory.ProductID] = &c
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	c := *order
	c.Items = append([]domain.OrderItem(nil), order.Items...)
	return &c
}
