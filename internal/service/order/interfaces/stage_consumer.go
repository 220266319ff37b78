// internal/service/order/interfaces/stage_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/pkg/retry"
	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
)

// stageReader 是 *kafka.Reader 中消费循环用到的子集。
type stageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Config() kafka.ReaderConfig
}

// deadLetterSink 是 *kafka.Writer 中死信转发用到的子集。
type deadLetterSink interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StageConsumerAdapter 驱动一个流水线阶段：消费输入 topic，
// 在本地重试预算内执行阶段逻辑，失败后移交 FailureHandler。
//
// offset 提交规则：成功和"已处理的失败"（已移交失败路径）都提交；
// 只有进程在处理中途崩溃（尚未走到提交）时，才依赖传输层按
// at-least-once 重投同一条消息。
type StageConsumerAdapter struct {
	reader  stageReader
	stage   string
	process func(ctx context.Context, event *domain.OrderEvent) error

	failureHandler *application.FailureHandler
	afterFailure   func(ctx context.Context, event *domain.OrderEvent) // 可选：失败信号发出后的附加动作（支付阶段挂补偿）
	deadLetters    deadLetterSink                                      // 无法解析的消息直接进死信

	maxAttempts int
	delay       time.Duration

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewStageConsumerAdapter(
	reader stageReader,
	stage string,
	process func(ctx context.Context, event *domain.OrderEvent) error,
	failureHandler *application.FailureHandler,
	deadLetters deadLetterSink,
	maxAttempts int,
	delay time.Duration,
) *StageConsumerAdapter {
	return &StageConsumerAdapter{
		reader:         reader,
		stage:          stage,
		process:        process,
		failureHandler: failureHandler,
		deadLetters:    deadLetters,
		maxAttempts:    maxAttempts,
		delay:          delay,
	}
}

// AfterFailure 注册失败路径之后执行的钩子。
// 支付阶段用它触发库存补偿：补偿在失败信号发出之后运行，而不是之前。
func (a *StageConsumerAdapter) AfterFailure(hook func(ctx context.Context, event *domain.OrderEvent)) {
	a.afterFailure = hook
}

// Start 开始消费。这是一个长期运行的循环，直到 Stop 或 ctx 取消。
func (a *StageConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().
			Str("stage", a.stage).
			Str("topic", a.reader.Config().Topic).
			Msg("✅ Stage consumer started")
		for {
			if a.stopped.Load() {
				return
			}
			// FetchMessage 而不是 ReadMessage：offset 由我们自己决定何时提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("stage", a.stage).Msg("🛑 Stage consumer shutting down")
					return
				}
				if a.stopped.Load() {
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("stage", a.stage).Msg("could not fetch message, retrying")
				time.Sleep(1 * time.Second) // 避免失败快速循环
				continue
			}

			msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
			a.handleMessage(msgCtx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("stage", a.stage).Msg("Failed to commit offset")
			}
		}
	}()
}

// Stop 优雅地停止消费。
func (a *StageConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("stage", a.stage).Msg("✅ Stage consumer stopped")
}

func (a *StageConsumerAdapter) handleMessage(ctx context.Context, msg kafka.Message) {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// 连信封都解析不了，无法进入重试/失败计数流程，直接进死信
		logger.Ctx(ctx).Error().Err(err).
			Str("stage", a.stage).
			Str("key", string(msg.Key)).
			Msg("Unparseable message, forwarding to DLQ")
		a.forwardRaw(ctx, msg, err)
		return
	}

	procErr := retry.Do(ctx, a.maxAttempts, a.delay, func(ctx context.Context) error {
		return a.process(ctx, &event)
	})
	if procErr == nil {
		stageProcessed.WithLabelValues(a.stage).Inc()
		return
	}

	stageFailures.WithLabelValues(a.stage).Inc()
	a.failureHandler.Handle(ctx, &event, procErr)
	if a.afterFailure != nil {
		a.afterFailure(ctx, &event)
	}
}

func (a *StageConsumerAdapter) forwardRaw(ctx context.Context, msg kafka.Message, cause error) {
	forward := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: mq.HeaderOriginalTopic, Value: []byte(msg.Topic)},
			{Key: mq.HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			{Key: mq.HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			{Key: mq.HeaderExceptionType, Value: []byte(fmt.Sprintf("%T", cause))},
			{Key: mq.HeaderExceptionMessage, Value: []byte(cause.Error())},
		},
	}

	carrier := mq.KafkaHeaderCarrier(forward.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	forward.Headers = carrier

	if err := a.deadLetters.WriteMessages(ctx, forward); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("stage", a.stage).Msg("Failed to forward raw message to DLQ")
	}
}
