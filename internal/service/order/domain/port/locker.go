// internal/service/order/domain/port/locker.go
package port

import "context"

// ResourceLocker 对一个资源ID（这里是商品ID）提供互斥执行。
// 库存的预占和释放都必须在对应商品的锁内完成，
// 否则并发订单的 check-then-write 会导致超卖。
type ResourceLocker interface {
	WithLock(ctx context.Context, resourceID string, fn func() error) error
}
