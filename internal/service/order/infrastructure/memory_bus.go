// internal/service/order/infrastructure/memory_bus.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/service/order/domain"
)

// MemoryBus 是 port.EventProducer 的进程内实现，用于测试和单机演练。
//
// 投递是同步、按发布顺序进行的，因此单 topic 内按订单的有序性天然成立。
// 每次投递都经过一轮 JSON 编解码，让订阅方拿到的是快照的独立副本，
// 和走真实传输层时一致（订阅方之间不会共享可变状态）。
type MemoryBus struct {
	topics bootstrap.Topics

	mu        sync.Mutex
	handlers  map[string][]func(ctx context.Context, event *domain.OrderEvent) error
	published map[string][]*domain.OrderEvent
}

func NewMemoryBus(topics bootstrap.Topics) *MemoryBus {
	return &MemoryBus{
		topics:    topics,
		handlers:  make(map[string][]func(ctx context.Context, event *domain.OrderEvent) error),
		published: make(map[string][]*domain.OrderEvent),
	}
}

// Subscribe 注册一个 topic 的处理函数。处理函数内部负责自己的
// 重试与失败处理，bus 只负责投递。
func (b *MemoryBus) Subscribe(topic string, handler func(ctx context.Context, event *domain.OrderEvent) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Published 返回某 topic 上已发布事件的副本列表，供测试断言。
func (b *MemoryBus) Published(topic string) []*domain.OrderEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.OrderEvent, len(b.published[topic]))
	copy(out, b.published[topic])
	return out
}

func (b *MemoryBus) publish(ctx context.Context, topic string, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var record domain.OrderEvent
	if err := json.Unmarshal(payload, &record); err != nil {
		return err
	}

	b.mu.Lock()
	b.published[topic] = append(b.published[topic], &record)
	handlers := append([]func(ctx context.Context, event *domain.OrderEvent) error(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		var delivered domain.OrderEvent
		if err := json.Unmarshal(payload, &delivered); err != nil {
			return err
		}
		if err := handler(ctx, &delivered); err != nil {
			// 处理函数的错误属于处理方（重试/失败路径在其内部），这里只记录
			logger.Ctx(ctx).Debug().Err(err).Str("topic", topic).Msg("memory bus handler returned error")
		}
	}
	return nil
}

func (b *MemoryBus) OrderPlaced(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.OrderPlaced, event)
}

func (b *MemoryBus) OrderValidated(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.OrderValidated, event)
}

func (b *MemoryBus) InventoryReserved(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.InventoryReserved, event)
}

func (b *MemoryBus) PaymentProcessed(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.PaymentProcessed, event)
}

func (b *MemoryBus) OrderConfirmed(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.OrderConfirmed, event)
}

func (b *MemoryBus) OrderFailed(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.OrderFailed, event)
}

func (b *MemoryBus) DeadLetter(ctx context.Context, event *domain.OrderEvent) error {
	return b.publish(ctx, b.topics.DLQOrders, event)
}
