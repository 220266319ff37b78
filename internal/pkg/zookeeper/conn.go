// internal/pkg/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 包装了 ZooKeeper 连接，便于在适配器之间传递。
type Conn struct {
	*zk.Conn
}

// Connect 建立到 ZooKeeper 集群的连接。
func Connect(addrs []string, sessionTimeout time.Duration) (*Conn, error) {
	c, _, err := zk.Connect(addrs, sessionTimeout)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: c}, nil
}
