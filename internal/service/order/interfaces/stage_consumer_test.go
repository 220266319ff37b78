package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace/noop"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/infrastructure"
)

type fakeStageReader struct {
	topic string
	msgs  chan kafka.Message

	mu        sync.Mutex
	commits   []kafka.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStageReader(topic string, msgs ...kafka.Message) *fakeStageReader {
	r := &fakeStageReader{
		topic:  topic,
		msgs:   make(chan kafka.Message, len(msgs)),
		closed: make(chan struct{}),
	}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeStageReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-r.closed:
		return kafka.Message{}, errors.New("reader closed")
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeStageReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeStageReader) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

func (r *fakeStageReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func (r *fakeStageReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: r.topic}
}

type fakeDLQSink struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (s *fakeDLQSink) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *fakeDLQSink) messages() []kafka.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]kafka.Message(nil), s.msgs...)
}

type noopNotifier struct{}

func (noopNotifier) OrderUpdate(context.Context, *domain.Order, string) error { return nil }

func newTestFailureHandler() (*application.FailureHandler, *infrastructure.MemoryBus) {
	bus := infrastructure.NewMemoryBus(bootstrap.Topics{OrderFailed: "order-failed", DLQOrders: "dlq-orders"})
	handler := application.NewFailureHandler(
		infrastructure.NewMemoryOrderRepository(), bus, noopNotifier{},
		noop.NewTracerProvider().Tracer("test"), 3)
	return handler, bus
}

// 信封本身解析不了的消息不进入重试和失败计数，
// 带诊断头原样转发死信后按已处理提交。
func TestStageConsumerForwardsUnparseableMessageToDLQ(t *testing.T) {
	handler, bus := newTestFailureHandler()
	sink := &fakeDLQSink{}
	processCalls := 0
	adapter := NewStageConsumerAdapter(
		newFakeStageReader("order-placed"), "validate",
		func(ctx context.Context, event *domain.OrderEvent) error {
			processCalls++
			return nil
		},
		handler, sink, 3, time.Millisecond)

	adapter.handleMessage(context.Background(), kafka.Message{
		Topic:     "order-placed",
		Partition: 2,
		Offset:    42,
		Key:       []byte("ORD-1"),
		Value:     []byte("{this is not json"),
	})

	if processCalls != 0 {
		t.Errorf("process called %d times for unparseable message, want 0", processCalls)
	}

	forwarded := sink.messages()
	if len(forwarded) != 1 {
		t.Fatalf("DLQ received %d messages, want 1", len(forwarded))
	}
	if string(forwarded[0].Key) != "ORD-1" {
		t.Errorf("DLQ key = %q, want ORD-1", forwarded[0].Key)
	}
	if string(forwarded[0].Value) != "{this is not json" {
		t.Errorf("DLQ value = %q, want original bytes untouched", forwarded[0].Value)
	}

	headers := make(map[string]string)
	for _, h := range forwarded[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[mq.HeaderOriginalTopic] != "order-placed" {
		t.Errorf("%s = %q, want order-placed", mq.HeaderOriginalTopic, headers[mq.HeaderOriginalTopic])
	}
	if headers[mq.HeaderOriginalPartition] != "2" {
		t.Errorf("%s = %q, want 2", mq.HeaderOriginalPartition, headers[mq.HeaderOriginalPartition])
	}
	if headers[mq.HeaderOriginalOffset] != "42" {
		t.Errorf("%s = %q, want 42", mq.HeaderOriginalOffset, headers[mq.HeaderOriginalOffset])
	}
	if headers[mq.HeaderExceptionType] == "" {
		t.Errorf("%s missing", mq.HeaderExceptionType)
	}
	if headers[mq.HeaderExceptionMessage] == "" {
		t.Errorf("%s missing", mq.HeaderExceptionMessage)
	}

	// 失败路径没有被触碰：计数、order-failed、失败信封都不该出现
	if got := bus.Published("order-failed"); len(got) != 0 {
		t.Errorf("order-failed events = %d, want 0", len(got))
	}
	if got := bus.Published("dlq-orders"); len(got) != 0 {
		t.Errorf("failure-path dlq events = %d, want 0", len(got))
	}
}

// 完整生命周期：正常消息和毒消息各提交一次 offset，Stop 干净收敛。
func TestStageConsumerLifecycle(t *testing.T) {
	handler, _ := newTestFailureHandler()
	sink := &fakeDLQSink{}

	order := &domain.Order{CustomerID: "CUST-1", TotalAmount: 10}
	order.Place("ORD-7")
	payload, err := json.Marshal(domain.NewOrderEvent("ORD-7", order, domain.StatusPlaced, "Order placed successfully", "OrderReceiver"))
	if err != nil {
		t.Fatal(err)
	}

	reader := newFakeStageReader("order-placed",
		kafka.Message{Topic: "order-placed", Key: []byte("poison"), Value: []byte("not json")},
		kafka.Message{Topic: "order-placed", Key: []byte("ORD-7"), Value: payload},
	)

	var mu sync.Mutex
	var processed []string
	adapter := NewStageConsumerAdapter(reader, "validate",
		func(ctx context.Context, event *domain.OrderEvent) error {
			mu.Lock()
			defer mu.Unlock()
			processed = append(processed, event.OrderID)
			return nil
		},
		handler, sink, 3, time.Millisecond)

	ctx := context.Background()
	adapter.Start(ctx)

	deadline := time.After(2 * time.Second)
	for reader.commitCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d commits before deadline, want 2", reader.commitCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	adapter.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 1 || processed[0] != "ORD-7" {
		t.Errorf("processed = %v, want [ORD-7]", processed)
	}
	if got := sink.messages(); len(got) != 1 {
		t.Errorf("DLQ received %d messages, want 1", len(got))
	}
}
