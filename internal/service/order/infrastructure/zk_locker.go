// internal/service/order/infrastructure/zk_locker.go
package infrastructure

import (
	"context"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/zookeeper"
)

// ZookeeperLocker 是 port.ResourceLocker 的分布式实现。
// 多实例部署时，同一商品的库存读写在所有实例间串行化。
type ZookeeperLocker struct {
	conn *zookeeper.Conn
}

func NewZookeeperLocker(conn *zookeeper.Conn) *ZookeeperLocker {
	return &ZookeeperLocker{conn: conn}
}

func (l *ZookeeperLocker) WithLock(ctx context.Context, resourceID string, fn func() error) error {
	lock, err := zookeeper.NewDistributedLock(l.conn, resourceID)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("resource_id", resourceID).Msg("Failed to release distributed lock")
		}
	}()
	return fn()
}
