package store

import (
	"testing"
	"time"

	"solrouter/internal/domain"
)

func archiveOrder(id string, status domain.OrderStatus, created time.Time) domain.Order {
	return domain.Order{
		ID:        id,
		Type:      domain.OrderTypeMarket,
		TokenIn:   "SOL",
		TokenOut:  "USDC",
		AmountIn:  1,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestExportArchivesOnlyTerminalOrders(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		archiveOrder("a", domain.StatusConfirmed, day),
		archiveOrder("b", domain.StatusFailed, day),
		archiveOrder("c", domain.StatusRouting, day),
	}

	n, err := a.Export(orders)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Errorf("archived %d orders, want 2", n)
	}

	records, err := a.Read(day)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.ID == "c" {
			t.Errorf("non-terminal order %s should not be archived", r.ID)
		}
	}
}

func TestExportMergesByID(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	first := archiveOrder("a", domain.StatusFailed, day)
	first.Error = "venue unreachable"
	if _, err := a.Export([]domain.Order{first}); err != nil {
		t.Fatalf("first Export: %v", err)
	}

	// Re-export the same id with different content plus a new order.
	second := archiveOrder("a", domain.StatusConfirmed, day)
	second.Dex = "orca"
	other := archiveOrder("b", domain.StatusConfirmed, day)
	if _, err := a.Export([]domain.Order{second, other}); err != nil {
		t.Fatalf("second Export: %v", err)
	}

	records, err := a.Read(day)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records after merge, want 2", len(records))
	}
	for _, r := range records {
		if r.ID == "a" {
			if r.Status != string(domain.StatusConfirmed) || r.Dex != "orca" {
				t.Errorf("re-exported record not updated: %+v", r)
			}
		}
	}
}

func TestExportPartitionsByDate(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	day1 := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		archiveOrder("a", domain.StatusConfirmed, day1),
		archiveOrder("b", domain.StatusConfirmed, day2),
	}
	if _, err := a.Export(orders); err != nil {
		t.Fatalf("Export: %v", err)
	}

	for _, day := range []time.Time{day1, day2} {
		records, err := a.Read(day)
		if err != nil {
			t.Fatalf("Read(%s): %v", day.Format("2006-01-02"), err)
		}
		if len(records) != 1 {
			t.Errorf("day %s has %d records, want 1", day.Format("2006-01-02"), len(records))
		}
	}
}

func TestReadMissingDate(t *testing.T) {
	a := NewParquetArchive(t.TempDir())

	records, err := a.Read(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Read on empty archive: %v", err)
	}
	if records != nil {
		t.Errorf("got %d records, want none", len(records))
	}
}
