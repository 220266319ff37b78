package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/infrastructure"
)

func TestValidateStageAcceptsValidOrder(t *testing.T) {
	ctx := context.Background()
	orders := infrastructure.NewMemoryOrderRepository()
	bus := infrastructure.NewMemoryBus(testTopics())
	stage := application.NewValidateStage(orders, bus, testTracer())

	order := testOrder()
	if err := stage.Process(ctx, placedEvent(order)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persisted, err := orders.FindByID(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if persisted.Status != domain.StatusValidated {
		t.Errorf("persisted status = %q, want VALIDATED", persisted.Status)
	}

	events := bus.Published("order-validated")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Status != domain.StatusValidated {
		t.Errorf("event status = %q, want VALIDATED", events[0].Status)
	}
	if events[0].SourceService != "OrderValidator" {
		t.Errorf("event source = %q, want OrderValidator", events[0].SourceService)
	}
	if events[0].Message != "Order validation successful" {
		t.Errorf("event message = %q", events[0].Message)
	}
}

func TestValidateStageRejectsInvalidOrders(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.Order)
		wantReason string
	}{
		{"empty customer id", func(o *domain.Order) { o.CustomerID = "" }, "Invalid customer ID"},
		{"no items", func(o *domain.Order) { o.Items = nil }, "Order must contain items"},
		{"zero total", func(o *domain.Order) { o.TotalAmount = 0 }, "Invalid order total"},
		{"negative total", func(o *domain.Order) { o.TotalAmount = -1 }, "Invalid order total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := infrastructure.NewMemoryOrderRepository()
			bus := infrastructure.NewMemoryBus(testTopics())
			stage := application.NewValidateStage(orders, bus, testTracer())

			order := testOrder()
			tt.mutate(order)

			err := stage.Process(context.Background(), placedEvent(order))
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *domain.ValidationError, got %v", err)
			}
			if vErr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", vErr.Reason, tt.wantReason)
			}
			if got := bus.Published("order-validated"); len(got) != 0 {
				t.Errorf("published %d events on failure, want 0", len(got))
			}
		})
	}
}

func TestReserveStageReservesEachLine(t *testing.T) {
	ctx := context.Background()
	inventory := infrastructure.NewMemoryInventoryRepository()
	inventory.Seed("PROD-1", 10, 0)
	bus := infrastructure.NewMemoryBus(testTopics())
	stage := application.NewReserveStage(inventory, infrastructure.NewKeyedMutexLocker(), bus, testTracer())

	order := testOrder() // PROD-1 x2
	if err := stage.Process(ctx, placedEvent(order)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inv, _ := inventory.FindByProductID(ctx, "PROD-1")
	if inv.AvailableQuantity != 8 || inv.ReservedQuantity != 2 {
		t.Errorf("got available=%d reserved=%d, want 8/2", inv.AvailableQuantity, inv.ReservedQuantity)
	}
	if got := bus.Published("inventory-reserved"); len(got) != 1 {
		t.Errorf("published %d events, want 1", len(got))
	}
}

func TestReserveStageInsufficientStockKeepsEarlierLines(t *testing.T) {
	ctx := context.Background()
	inventory := infrastructure.NewMemoryInventoryRepository()
	inventory.Seed("PROD-1", 10, 0)
	inventory.Seed("PROD-2", 3, 0)
	bus := infrastructure.NewMemoryBus(testTopics())
	stage := application.NewReserveStage(inventory, infrastructure.NewKeyedMutexLocker(), bus, testTracer())

	order := testOrder()
	order.Items = []domain.OrderItem{
		{ProductID: "PROD-1", Quantity: 2, Price: 10},
		{ProductID: "PROD-2", Quantity: 5, Price: 10},
	}

	err := stage.Process(ctx, placedEvent(order))
	var invErr *domain.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *domain.InventoryError, got %v", err)
	}

	// 第 1 行的预占保持生效，本阶段不回滚
	first, _ := inventory.FindByProductID(ctx, "PROD-1")
	if first.AvailableQuantity != 8 || first.ReservedQuantity != 2 {
		t.Errorf("first line rolled back: available=%d reserved=%d, want 8/2", first.AvailableQuantity, first.ReservedQuantity)
	}
	second, _ := inventory.FindByProductID(ctx, "PROD-2")
	if second.AvailableQuantity != 3 || second.ReservedQuantity != 0 {
		t.Errorf("failed line modified: available=%d reserved=%d, want 3/0", second.AvailableQuantity, second.ReservedQuantity)
	}
	if got := bus.Published("inventory-reserved"); len(got) != 0 {
		t.Errorf("published %d events on failure, want 0", len(got))
	}
}

func TestReserveStageUnknownProduct(t *testing.T) {
	bus := infrastructure.NewMemoryBus(testTopics())
	stage := application.NewReserveStage(
		infrastructure.NewMemoryInventoryRepository(), infrastructure.NewKeyedMutexLocker(), bus, testTracer())

	order := testOrder()
	err := stage.Process(context.Background(), placedEvent(order))
	var invErr *domain.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *domain.InventoryError, got %v", err)
	}
	if invErr.Reason != "Product not found: PROD-1" {
		t.Errorf("reason = %q", invErr.Reason)
	}
}

func TestPaymentStageApproved(t *testing.T) {
	bus := infrastructure.NewMemoryBus(testTopics())
	gateway := gatewayFunc(func(ctx context.Context, order *domain.Order) (bool, error) { return true, nil })
	stage := application.NewPaymentStage(gateway, bus, testTracer(), time.Second)

	if err := stage.Process(context.Background(), placedEvent(testOrder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := bus.Published("payment-processed")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].SourceService != "PaymentProcessor" {
		t.Errorf("event source = %q, want PaymentProcessor", events[0].SourceService)
	}
}

func TestPaymentStageDeclined(t *testing.T) {
	bus := infrastructure.NewMemoryBus(testTopics())
	gateway := gatewayFunc(func(ctx context.Context, order *domain.Order) (bool, error) { return false, nil })
	stage := application.NewPaymentStage(gateway, bus, testTracer(), time.Second)

	err := stage.Process(context.Background(), placedEvent(testOrder()))
	var pErr *domain.PaymentError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *domain.PaymentError, got %v", err)
	}
	if pErr.Reason != "Payment gateway declined the transaction" {
		t.Errorf("reason = %q", pErr.Reason)
	}
	if got := bus.Published("payment-processed"); len(got) != 0 {
		t.Errorf("published %d events on decline, want 0", len(got))
	}
}

func TestPaymentStageGatewayError(t *testing.T) {
	bus := infrastructure.NewMemoryBus(testTopics())
	gateway := gatewayFunc(func(ctx context.Context, order *domain.Order) (bool, error) {
		return false, errors.New("connection reset")
	})
	stage := application.NewPaymentStage(gateway, bus, testTracer(), time.Second)

	err := stage.Process(context.Background(), placedEvent(testOrder()))
	var pErr *domain.PaymentError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *domain.PaymentError, got %v", err)
	}
	if !strings.HasPrefix(pErr.Reason, "Payment processing failed: ") {
		t.Errorf("reason = %q, want 'Payment processing failed: ' prefix", pErr.Reason)
	}
}

// 一条信封字段齐全但 "order": null 的消息必须走错误返回（进而进失败路径），
// 任何阶段都不允许 panic——panic 会带着未提交的 offset 杀掉整个进程，
// 重启后同一条消息被重投，消费者陷入崩溃循环。
func TestStagesRejectEventWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	orders := infrastructure.NewMemoryOrderRepository()
	inventory := infrastructure.NewMemoryInventoryRepository()
	bus := infrastructure.NewMemoryBus(testTopics())
	locker := infrastructure.NewKeyedMutexLocker()
	notifier := &recordingNotifier{}
	gateway := gatewayFunc(func(ctx context.Context, order *domain.Order) (bool, error) { return true, nil })

	stages := []struct {
		name    string
		process func(context.Context, *domain.OrderEvent) error
	}{
		{"validate", application.NewValidateStage(orders, bus, testTracer()).Process},
		{"reserve", application.NewReserveStage(inventory, locker, bus, testTracer()).Process},
		{"payment", application.NewPaymentStage(gateway, bus, testTracer(), time.Second).Process},
		{"confirm", application.NewConfirmStage(orders, bus, notifier, testTracer()).Process},
	}
	for _, tt := range stages {
		t.Run(tt.name, func(t *testing.T) {
			event := domain.NewOrderEvent("ORD-X", nil, domain.StatusPlaced, "", "OrderReceiver")
			if err := tt.process(ctx, event); err == nil {
				t.Error("expected error for event without order snapshot")
			}
		})
	}
}

func TestConfirmStageFinalisesOrder(t *testing.T) {
	ctx := context.Background()
	orders := infrastructure.NewMemoryOrderRepository()
	bus := infrastructure.NewMemoryBus(testTopics())
	notifier := &recordingNotifier{}
	stage := application.NewConfirmStage(orders, bus, notifier, testTracer())

	order := testOrder()
	if err := stage.Process(ctx, placedEvent(order)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persisted, err := orders.FindByID(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if persisted.Status != domain.StatusConfirmed {
		t.Errorf("persisted status = %q, want CONFIRMED", persisted.Status)
	}

	events := bus.Published("order-confirmed")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].SourceService != "OrderCoordinator" {
		t.Errorf("event source = %q, want OrderCoordinator", events[0].SourceService)
	}

	msgs := notifier.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "has been confirmed") {
		t.Errorf("notification messages = %v", msgs)
	}
}
