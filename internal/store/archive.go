package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"solrouter/internal/domain"
)

// OrderRecord is the Parquet schema for archived orders.
type OrderRecord struct {
	ID            string  `parquet:"id"`
	Type          string  `parquet:"type"`
	TokenIn       string  `parquet:"token_in"`
	TokenOut      string  `parquet:"token_out"`
	AmountIn      float64 `parquet:"amount_in"`
	Status        string  `parquet:"status"`
	Dex           string  `parquet:"dex"`
	ExecutedPrice float64 `parquet:"executed_price"`
	TxHash        string  `parquet:"tx_hash"`
	Error         string  `parquet:"error"`
	Attempts      int32   `parquet:"attempts"`
	CreatedAt     int64   `parquet:"created_at,timestamp(millisecond)"`
	UpdatedAt     int64   `parquet:"updated_at,timestamp(millisecond)"`
}

// ParquetArchive exports terminal orders to Parquet files partitioned by
// creation date. Re-exporting merges by order id, so the operation is
// idempotent.
type ParquetArchive struct {
	Dir string
}

// NewParquetArchive creates an archive rooted at the given directory.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// Export writes all terminal (CONFIRMED or FAILED) orders from the given
// slice into per-date Parquet files and returns the number archived.
func (a *ParquetArchive) Export(orders []domain.Order) (int, error) {
	groups := make(map[string][]OrderRecord)
	for i := range orders {
		o := &orders[i]
		if !o.Status.Terminal() {
			continue
		}
		date := o.CreatedAt.UTC().Format("2006-01-02")
		groups[date] = append(groups[date], OrderRecord{
			ID:            o.ID,
			Type:          string(o.Type),
			TokenIn:       o.TokenIn,
			TokenOut:      o.TokenOut,
			AmountIn:      o.AmountIn,
			Status:        string(o.Status),
			Dex:           o.Dex,
			ExecutedPrice: o.ExecutedPrice,
			TxHash:        o.TxHash,
			Error:         o.Error,
			Attempts:      int32(o.Attempts),
			CreatedAt:     o.CreatedAt.UnixMilli(),
			UpdatedAt:     o.UpdatedAt.UnixMilli(),
		})
	}

	archived := 0
	for date, records := range groups {
		path := a.path(date)

		existing, _ := readParquetFile[OrderRecord](path)
		merged := mergeOrderRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return archived, fmt.Errorf("archiving orders for %s: %w", date, err)
		}
		archived += len(records)
	}
	return archived, nil
}

// Read returns the archived records for a date, or nil when no file exists.
func (a *ParquetArchive) Read(date time.Time) ([]OrderRecord, error) {
	records, err := readParquetFile[OrderRecord](a.path(date.UTC().Format("2006-01-02")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

// path returns the archive file for a date.
// Layout: <dir>/orders-<YYYY-MM-DD>.parquet
func (a *ParquetArchive) path(date string) string {
	return filepath.Join(a.Dir, "orders-"+date+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeOrderRecords deduplicates records by order id, preferring incoming
// over existing. Results are sorted by creation time.
func mergeOrderRecords(existing, incoming []OrderRecord) []OrderRecord {
	seen := make(map[string]OrderRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]OrderRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt < merged[j].CreatedAt
	})
	return merged
}
