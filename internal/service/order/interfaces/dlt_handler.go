// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/service/order/domain"
)

// DltConsumerAdapter 监听死信队列并记录日志。
// 死信里有两类消息：失败次数达到阈值的订单事件信封，
// 和带诊断 header 的原始报文（解析失败被直接转发的）。
type DltConsumerAdapter struct {
	reader  *kafka.Reader
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewDltConsumerAdapter(reader *kafka.Reader) *DltConsumerAdapter {
	return &DltConsumerAdapter{
		reader: reader,
	}
}

func (a *DltConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter started.")
		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 DLT Consumer Adapter shutting down.")
					return
				}
				continue
			}

			deadLettersReceived.Inc()
			logDeadLetter(ctx, msg)
		}
	}()
	return nil
}

func (a *DltConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter stopped.")
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := make(map[string]string)
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	entry := logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_type", headers[mq.HeaderExceptionType]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key))

	// 能解析成订单事件信封就提取关键字段，便于按订单检索
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err == nil && event.OrderID != "" {
		entry = entry.
			Str("order_id", event.OrderID).
			Str("status", string(event.Status)).
			Str("failure_message", event.Message).
			Str("source_service", event.SourceService)
		if event.Order != nil {
			entry = entry.Int("retry_count", event.Order.RetryCount)
		}
	} else {
		entry = entry.Str("value", string(msg.Value))
	}

	entry.Msg("🚨 CRITICAL: Dead letter message received")
}
