// internal/service/order/infrastructure/memory_locker.go
package infrastructure

import (
	"context"
	"sync"
)

// KeyedMutexLocker 是 port.ResourceLocker 的进程内实现：
// 每个资源ID一把互斥锁。只在单实例部署（或测试）下正确，
// 多实例时必须换用 ZookeeperLocker。
type KeyedMutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutexLocker() *KeyedMutexLocker {
	return &KeyedMutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *KeyedMutexLocker) WithLock(_ context.Context, resourceID string, fn func() error) error {
	l.mu.Lock()
	m, ok := l.locks[resourceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[resourceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}
