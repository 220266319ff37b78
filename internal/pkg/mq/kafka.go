// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"orderpipeline/internal/pkg/logger"
)

// NewWriter 创建一个异步的 Kafka Writer。
//
// Balancer 使用 Hash：同一个 key（订单ID）的消息总是落在同一分区，
// 保证单个订单在一个 topic 内的有序投递。
// Async 模式下 WriteMessages 立即返回，发送结果通过 Completion 回调报告——
// 发送失败只记录日志，不阻塞调用方。这意味着"本地状态已提交但事件未发出"
// 的窗口是存在的，系统整体按 at-least-once 语义设计。
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				logger.Ctx(context.Background()).Error().
					Err(err).
					Str("topic", m.Topic).
					Str("key", string(m.Key)).
					Msg("Unable to deliver message to Kafka")
			}
		},
	}
}

// NewReader 创建一个带消费组的 Kafka Reader。
// 使用消费组语义：同一分区同一时刻只会被组内一个实例消费，
// offset 由调用方通过 CommitMessages 手动提交。
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0, // 同步提交
	})
}

// ProduceMessage 发送一条消息，并把当前链路上下文注入消息头。
func ProduceMessage(ctx context.Context, writer *kafka.Writer, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	}

	carrier := KafkaHeaderCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier

	return writer.WriteMessages(ctx, msg)
}

// ExtractTraceContext 从消息头中恢复链路上下文。
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := KafkaHeaderCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
