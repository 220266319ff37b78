// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/inventory-locks" // 库存资源锁的根节点

var ErrLockTimeout = errors.New("timeout waiting for lock")

// DistributedLock 是基于临时顺序节点的互斥锁。
// 同一个 resourceID（商品ID）上的 read-check-write 序列通过它串行化，
// 防止并发订单对同一商品超卖。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁路径，例如 /inventory-locks/P1
	lockNode string // 持锁时自己创建的节点
	waitMax  time.Duration
}

// NewDistributedLock 创建一个锁实例，并确保锁路径存在。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	for _, p := range []string{lockRoot, lockRoot + "/" + resourceID} {
		exists, _, err := conn.Exists(p)
		if err != nil {
			return nil, fmt.Errorf("failed to check lock node %s: %w", p, err)
		}
		if !exists {
			if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return nil, fmt.Errorf("failed to create lock node %s: %w", p, err)
			}
		}
	}

	return &DistributedLock{
		conn:    conn,
		path:    lockRoot + "/" + resourceID,
		waitMax: 30 * time.Second,
	}, nil
}

// Lock 尝试获取锁，获取不到则阻塞等待前序节点释放。
func (l *DistributedLock) Lock() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to list lock children: %w", err)
		}
		// protected 节点名形如 _c_<guid>-lock-<seq>，必须按序号排序而不是整个名字
		sort.Slice(children, func(i, j int) bool {
			return sequenceOf(children[i]) < sequenceOf(children[j])
		})

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNode == children[0] {
			return nil // 最小节点，持锁成功
		}

		// 只监听自己前面的一个节点，避免惊群
		prev := -1
		for i, child := range children {
			if child == myNode {
				prev = i - 1
				break
			}
		}
		if prev < 0 {
			return errors.New("own lock node missing from children")
		}

		_, _, eventChan, err := l.conn.ExistsW(l.path + "/" + children[prev])
		if err != nil {
			if err == zk.ErrNoNode {
				continue // 前序节点刚好释放，重新竞争
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(l.waitMax):
			return ErrLockTimeout
		}
	}
}

func sequenceOf(name string) int {
	i := strings.LastIndex(name, "-")
	if i < 0 {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	if err := l.conn.Delete(l.lockNode, -1); err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
