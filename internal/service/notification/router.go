// internal/service/notification/router.go
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/pkg/session"
	"orderpipeline/internal/service/order/domain"
)

// NodeTopicPrefix 是每个推送网关节点专属 topic 的前缀。
// 节点启动时订阅 "push-gateway-<nodeID>"，路由服务按会话把通知投过去。
const NodeTopicPrefix = "push-gateway-"

// Router 消费 notifications topic，根据 Redis 里的会话映射
// 把通知转投到客户当前所在网关节点的专属 topic。
// 客户不在线时通知直接丢弃——订单状态本身是持久化的，推送只是尽力而为。
type Router struct {
	reader   *kafka.Reader
	sessions *session.Manager
	brokers  []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer // 按节点 topic 缓存 writer

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewRouter(reader *kafka.Reader, sessions *session.Manager, brokers []string) *Router {
	return &Router{
		reader:   reader,
		sessions: sessions,
		brokers:  brokers,
		writers:  make(map[string]*kafka.Writer),
	}
}

func (r *Router) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", r.reader.Config().Topic).Msg("✅ Notification router started")
		for {
			if r.stopped.Load() {
				return
			}
			msg, err := r.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 Notification router shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch notification, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
			r.route(msgCtx, msg)

			if err := r.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit notification offset")
			}
		}
	}()
}

func (r *Router) Stop(ctx context.Context) {
	r.stopped.Store(true)
	r.reader.Close()
	r.wg.Wait()

	r.mu.Lock()
	for _, w := range r.writers {
		w.Close()
	}
	r.mu.Unlock()
	logger.Ctx(ctx).Info().Msg("✅ Notification router stopped")
}

func (r *Router) route(ctx context.Context, msg kafka.Message) {
	var event domain.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", string(msg.Key)).Msg("Failed to unmarshal notification, dropping")
		return
	}

	nodeID, err := r.sessions.GetCustomerGateway(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			logger.Ctx(ctx).Debug().
				Str("customer_id", event.CustomerID).
				Str("order_id", event.OrderID).
				Msg("Customer offline, notification dropped")
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("customer_id", event.CustomerID).Msg("Session lookup failed")
		return
	}

	if err := mq.ProduceMessage(ctx, r.writerFor(nodeID), []byte(event.CustomerID), msg.Value); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("customer_id", event.CustomerID).
			Str("gateway_node", nodeID).
			Msg("Failed to route notification to gateway node")
		return
	}

	logger.Ctx(ctx).Info().
		Str("customer_id", event.CustomerID).
		Str("order_id", event.OrderID).
		Str("gateway_node", nodeID).
		Msg("Notification routed")
}

func (r *Router) writerFor(nodeID string) *kafka.Writer {
	topic := NodeTopicPrefix + nodeID
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.writers[topic]; ok {
		return w
	}
	w := mq.NewWriter(r.brokers, topic)
	r.writers[topic] = w
	return w
}
