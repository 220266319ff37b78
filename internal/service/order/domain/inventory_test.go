package domain

import (
	"errors"
	"testing"
)

func TestReserveMovesAvailableToReserved(t *testing.T) {
	inv := &ProductInventory{ProductID: "PROD-1", AvailableQuantity: 10}

	if err := inv.Reserve(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.AvailableQuantity != 7 || inv.ReservedQuantity != 3 {
		t.Errorf("got available=%d reserved=%d, want 7/3", inv.AvailableQuantity, inv.ReservedQuantity)
	}
}

func TestReserveInsufficientLeavesInventoryUntouched(t *testing.T) {
	inv := &ProductInventory{ProductID: "PROD-1", AvailableQuantity: 2}

	err := inv.Reserve(5)
	if err == nil {
		t.Fatal("expected error")
	}
	var invErr *InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InventoryError, got %T", err)
	}
	want := "Insufficient inventory for product: PROD-1. Available: 2, Requested: 5"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	if inv.AvailableQuantity != 2 || inv.ReservedQuantity != 0 {
		t.Errorf("inventory modified on failed reserve: available=%d reserved=%d", inv.AvailableQuantity, inv.ReservedQuantity)
	}
}

func TestReserveThenReleaseConservesTotal(t *testing.T) {
	inv := &ProductInventory{ProductID: "PROD-1", AvailableQuantity: 10, ReservedQuantity: 2}
	total := inv.AvailableQuantity + inv.ReservedQuantity

	if err := inv.Reserve(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	released := inv.Release(4)
	if released != 4 {
		t.Errorf("released = %d, want 4", released)
	}
	if got := inv.AvailableQuantity + inv.ReservedQuantity; got != total {
		t.Errorf("total quantity = %d, want %d", got, total)
	}
	if inv.AvailableQuantity != 10 || inv.ReservedQuantity != 2 {
		t.Errorf("got available=%d reserved=%d, want 10/2", inv.AvailableQuantity, inv.ReservedQuantity)
	}
}

func TestReleaseClampsToReserved(t *testing.T) {
	inv := &ProductInventory{ProductID: "PROD-1", AvailableQuantity: 5, ReservedQuantity: 2}

	released := inv.Release(10)
	if released != 2 {
		t.Errorf("released = %d, want 2", released)
	}
	if inv.ReservedQuantity != 0 {
		t.Errorf("ReservedQuantity = %d, want 0", inv.ReservedQuantity)
	}
	if inv.AvailableQuantity != 7 {
		t.Errorf("AvailableQuantity = %d, want 7", inv.AvailableQuantity)
	}

	// 从未预占过的记录，归还是空操作
	if released := inv.Release(3); released != 0 {
		t.Errorf("released = %d, want 0", released)
	}
}
