// internal/pkg/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 12 * time.Hour

var ErrNotConnected = errors.New("customer has no active gateway session")

// Manager 在 Redis 中维护「客户 → 推送网关节点」的会话映射，
// 让通知路由服务能找到客户当前连接的网关实例。
type Manager struct {
	client *redis.Client
}

func NewManager(addr string) *Manager {
	return &Manager{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func sessionKey(customerID string) string {
	return fmt.Sprintf("session:gateway:{%s}", customerID)
}

// SetCustomerGateway 记录客户连接到了哪个网关节点。
func (m *Manager) SetCustomerGateway(ctx context.Context, customerID, nodeID string) error {
	return m.client.Set(ctx, sessionKey(customerID), nodeID, sessionTTL).Err()
}

// GetCustomerGateway 返回客户当前所在的网关节点。
func (m *Manager) GetCustomerGateway(ctx context.Context, customerID string) (string, error) {
	nodeID, err := m.client.Get(ctx, sessionKey(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotConnected
	}
	return nodeID, err
}

// RemoveCustomerGateway 在连接断开时清理会话。
func (m *Manager) RemoveCustomerGateway(ctx context.Context, customerID string) error {
	return m.client.Del(ctx, sessionKey(customerID)).Err()
}

func (m *Manager) Close() error {
	return m.client.Close()
}
