// internal/service/order/domain/inventory.go
package domain

// ProductInventory 记录单个商品的库存水位。
// 不变式：对同一订单行，一次 Reserve 加其对应的 Release 之后，
// Available + Reserved 的总量保持不变。
type ProductInventory struct {
	ProductID         string `json:"productId"`
	AvailableQuantity int    `json:"availableQuantity"`
	ReservedQuantity  int    `json:"reservedQuantity"`
}

// Reserve 预占库存：可用不足时返回 InventoryError，不做任何修改。
func (p *ProductInventory) Reserve(quantity int) error {
	if p.AvailableQuantity < quantity {
		return NewInsufficientInventoryError(p.ProductID, p.AvailableQuantity, quantity)
	}
	p.AvailableQuantity -= quantity
	p.ReservedQuantity += quantity
	return nil
}

// Release 归还预占。归还量以当前 Reserved 为上界，
// 因此对从未预占过的记录调用是幂等的空操作，Reserved 不会变成负数。
func (p *ProductInventory) Release(quantity int) int {
	if quantity > p.ReservedQuantity {
		quantity = p.ReservedQuantity
	}
	p.AvailableQuantity += quantity
	p.ReservedQuantity -= quantity
	return quantity
}
