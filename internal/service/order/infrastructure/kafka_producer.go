// internal/service/order/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/service/order/domain"
)

// KafkaEventProducer 是 port.EventProducer 的 Kafka 实现。
// 每个 topic 一个异步 Writer，分区键为订单ID（Hash balancer），
// 保证同一订单在单个 topic 内的事件有序。
type KafkaEventProducer struct {
	topics  bootstrap.Topics
	writers map[string]*kafka.Writer
}

func NewKafkaEventProducer(brokers []string, topics bootstrap.Topics) *KafkaEventProducer {
	p := &KafkaEventProducer{
		topics:  topics,
		writers: make(map[string]*kafka.Writer),
	}
	for _, topic := range []string{
		topics.OrderPlaced,
		topics.OrderValidated,
		topics.InventoryReserved,
		topics.PaymentProcessed,
		topics.OrderConfirmed,
		topics.OrderFailed,
		topics.DLQOrders,
	} {
		p.writers[topic] = mq.NewWriter(brokers, topic)
	}
	return p
}

func (p *KafkaEventProducer) send(ctx context.Context, topic string, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order event")
	}
	return mq.ProduceMessage(ctx, p.writers[topic], []byte(event.OrderID), payload)
}

func (p *KafkaEventProducer) OrderPlaced(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.OrderPlaced, event)
}

func (p *KafkaEventProducer) OrderValidated(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.OrderValidated, event)
}

func (p *KafkaEventProducer) InventoryReserved(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.InventoryReserved, event)
}

func (p *KafkaEventProducer) PaymentProcessed(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.PaymentProcessed, event)
}

func (p *KafkaEventProducer) OrderConfirmed(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.OrderConfirmed, event)
}

func (p *KafkaEventProducer) OrderFailed(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.OrderFailed, event)
}

func (p *KafkaEventProducer) DeadLetter(ctx context.Context, event *domain.OrderEvent) error {
	return p.send(ctx, p.topics.DLQOrders, event)
}

func (p *KafkaEventProducer) Close() error {
	var lastErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
