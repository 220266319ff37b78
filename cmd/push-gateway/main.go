// cmd/push-gateway/main.go
package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/pkg/session"
	"orderpipeline/internal/service/notification"
)

const (
	serviceName = "push-gateway"
	servicePort = 8083

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护本节点上所有活跃的 WebSocket 连接。
type Hub struct {
	nodeID     string
	sessions   *session.Manager
	clients    map[string]*Client // CustomerID 作为 Key
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func newHub(nodeID string, sessions *session.Manager) *Hub {
	return &Hub{
		nodeID:     nodeID,
		sessions:   sessions,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.customerID] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().
				Str("customer_id", client.customerID).
				Str("node_id", h.nodeID).
				Msg("Client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.customerID]; ok {
				delete(h.clients, client.customerID)
				close(client.send)
			}
			h.lock.Unlock()
			// 会话清理失败只记录：TTL 最终会让过期映射失效
			if err := h.sessions.RemoveCustomerGateway(ctx, client.customerID); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("customer_id", client.customerID).Msg("Failed to remove session")
			}
			logger.Ctx(ctx).Info().Str("customer_id", client.customerID).Msg("Client unregistered")
		}
	}
}

// push 把消息投递到指定客户的连接，客户不在本节点时返回 false。
func (h *Hub) push(customerID string, payload []byte) bool {
	h.lock.RLock()
	client, ok := h.clients[customerID]
	h.lock.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		// send 缓冲满说明连接已经写不动了，交给 readPump/writePump 收尾
		return false
	}
}

// Client 是一个 WebSocket 连接的代表
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	customerID string
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// 客户端只发心跳，业务数据全部走服务端推送
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(ctx context.Context, hub *Hub, w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		http.Error(w, "customerId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// 先登记会话再挂进 Hub：会话写失败时直接断开，
	// 不能留下一个路由服务永远找不到的半注册连接
	if err := hub.sessions.SetCustomerGateway(ctx, customerID, hub.nodeID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("customer_id", customerID).Msg("Failed to set session")
		conn.Close()
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), customerID: customerID}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// consumeNodeTopic 消费本节点专属 topic，把路由过来的通知推给对应客户。
func consumeNodeTopic(ctx context.Context, hub *Hub, reader *kafka.Reader) {
	logger.Ctx(ctx).Info().Str("topic", reader.Config().Topic).Msg("✅ Node topic consumer started")
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read node topic message, retrying")
			time.Sleep(1 * time.Second)
			continue
		}
		customerID := string(msg.Key)
		if !hub.push(customerID, msg.Value) {
			// 路由和断连之间存在竞态窗口，推送失败属于预期情况
			logger.Ctx(ctx).Debug().Str("customer_id", customerID).Msg("Customer no longer on this node, message dropped")
		}
	}
}

func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	nodeID := "node-" + uuid.New().String()[:8]
	sessions := session.NewManager(cfg.Redis.Addr)
	hub := newHub(nodeID, sessions)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.run(ctx)

	// 每个网关节点订阅自己专属的 topic，接收路由服务转投的通知
	nodeReader := mq.NewReader(cfg.Kafka.Brokers, "push-gateway-"+nodeID, notification.NodeTopicPrefix+nodeID)
	go consumeNodeTopic(ctx, hub, nodeReader)

	logger.Ctx(ctx).Info().Str("node_id", nodeID).Msg("Push gateway node starting")

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(ctx, hub, w, r)
			})
		},
		Shutdown: func(shutdownCtx context.Context) {
			cancel()
			nodeReader.Close()
			sessions.Close()
		},
	})
}
