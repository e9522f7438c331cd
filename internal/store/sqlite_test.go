package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"solrouter/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestOrder(t *testing.T) *domain.Order {
	t.Helper()
	ord, err := domain.NewOrder(domain.OrderTypeMarket, "SOL", "USDC", 1.5)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return ord
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ord := newTestOrder(t)
	if err := s.Insert(ctx, ord); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != ord.ID || got.TokenIn != "SOL" || got.TokenOut != "USDC" {
		t.Errorf("Get returned %+v, want original order", got)
	}
	if got.AmountIn != 1.5 {
		t.Errorf("AmountIn = %v, want 1.5", got.AmountIn)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status = %s, want PENDING", got.Status)
	}
}

func TestGetMissingOrder(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusCarriesFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ord := newTestOrder(t)
	if err := s.Insert(ctx, ord); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.UpdateStatus(ctx, ord.ID, domain.StatusConfirmed, Update{
		Dex:           "orca",
		ExecutedPrice: 24.7,
		TxHash:        "abc123",
		Attempts:      2,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := s.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", got.Status)
	}
	if got.Dex != "orca" || got.ExecutedPrice != 24.7 || got.TxHash != "abc123" {
		t.Errorf("carried fields not persisted: %+v", got)
	}
	if got.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", got.Attempts)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestUpdateStatusLeavesZeroFieldsUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ord := newTestOrder(t)
	if err := s.Insert(ctx, ord); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.UpdateStatus(ctx, ord.ID, domain.StatusBuilding, Update{Dex: "raydium"}); err != nil {
		t.Fatalf("UpdateStatus(BUILDING): %v", err)
	}

	// A later update without Dex must not wipe it.
	if err := s.UpdateStatus(ctx, ord.ID, domain.StatusSubmitted, Update{}); err != nil {
		t.Fatalf("UpdateStatus(SUBMITTED): %v", err)
	}

	got, err := s.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Dex != "raydium" {
		t.Errorf("Dex = %q, want raydium preserved", got.Dex)
	}
	if got.Status != domain.StatusSubmitted {
		t.Errorf("Status = %s, want SUBMITTED", got.Status)
	}
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateStatus(context.Background(), "no-such-id", domain.StatusFailed, Update{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStatus error = %v, want ErrNotFound", err)
	}
}

func TestListRecentOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		ord := newTestOrder(t)
		// Distinct creation times so the ordering is deterministic.
		ord.CreatedAt = ord.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		if err := s.Insert(ctx, ord); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		ids = append(ids, ord.ID)
	}

	orders, err := s.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	// Newest first.
	if orders[0].ID != ids[2] || orders[2].ID != ids[0] {
		t.Errorf("orders not sorted newest-first: %v", []string{orders[0].ID, orders[1].ID, orders[2].ID})
	}

	limited, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d orders with limit 2, want 2", len(limited))
	}
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, status := range []domain.OrderStatus{
		domain.StatusPending, domain.StatusRouting,
		domain.StatusConfirmed, domain.StatusFailed,
	} {
		ord := newTestOrder(t)
		ord.Status = status
		if err := s.Insert(ctx, ord); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	total, active, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if active != 2 {
		t.Errorf("active = %d, want 2 (terminal orders excluded)", active)
	}
}
