// Package engine coordinates the order pipeline: it accepts submissions,
// hands them to the durable queue, and drives each claimed job through the
// routing, building, and settlement stages.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"solrouter/internal/domain"
	"solrouter/internal/queue"
	"solrouter/internal/store"
)

// Engine is the submission and query surface over the order pipeline.
type Engine struct {
	store   store.OrderStore
	queue   *queue.Queue
	archive *store.ParquetArchive
	log     *slog.Logger
}

// New wires an Engine over its dependencies. The archive may be nil when
// exporting is not configured.
func New(orders store.OrderStore, q *queue.Queue, archive *store.ParquetArchive, log *slog.Logger) *Engine {
	return &Engine{
		store:   orders,
		queue:   q,
		archive: archive,
		log:     log,
	}
}

// Submit validates the submission, persists a new PENDING order, and
// enqueues it for processing. Validation failures return
// domain.ErrInvalidOrder synchronously and leave no trace: nothing is
// persisted and nothing is enqueued.
func (e *Engine) Submit(ctx context.Context, typ domain.OrderType, tokenIn, tokenOut string, amountIn float64) (*domain.Order, error) {
	order, err := domain.NewOrder(typ, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}

	if err := e.store.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("persisting order: %w", err)
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encoding order: %w", err)
	}
	if _, err := e.queue.Enqueue(ctx, order.ID, payload); err != nil {
		return nil, fmt.Errorf("enqueueing order: %w", err)
	}

	e.log.Info("order accepted",
		"order", order.ID, "tokenIn", order.TokenIn, "tokenOut", order.TokenOut,
		"amountIn", order.AmountIn)

	return order, nil
}

// GetOrder returns the current persisted state of an order.
func (e *Engine) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return e.store.Get(ctx, id)
}

// ListOrders returns orders newest-first. A non-positive limit returns all.
func (e *Engine) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	return e.store.ListRecent(ctx, limit)
}

// QueueStats combines queue-side job counts with store-side order counts.
type QueueStats struct {
	Jobs         queue.Stats `json:"jobs"`
	TotalOrders  int         `json:"totalOrders"`
	ActiveOrders int         `json:"activeOrders"`
}

// Stats reports the current queue and order counts.
func (e *Engine) Stats(ctx context.Context) (QueueStats, error) {
	jobs, err := e.queue.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	total, active, err := e.store.Counts(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{Jobs: jobs, TotalOrders: total, ActiveOrders: active}, nil
}

// Reset drains every job from the queue regardless of state. Persisted
// orders are untouched.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.queue.DrainAll(ctx); err != nil {
		return err
	}
	e.log.Info("queue reset")
	return nil
}

// Archive exports all terminal orders to the Parquet archive and returns
// the number archived.
func (e *Engine) Archive(ctx context.Context) (int, error) {
	if e.archive == nil {
		return 0, fmt.Errorf("archive not configured")
	}
	orders, err := e.store.ListRecent(ctx, 0)
	if err != nil {
		return 0, err
	}
	n, err := e.archive.Export(orders)
	if err != nil {
		return n, err
	}
	e.log.Info("orders archived", "count", n)
	return n, nil
}
