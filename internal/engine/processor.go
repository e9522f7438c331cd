package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"solrouter/internal/domain"
	"solrouter/internal/hub"
	"solrouter/internal/queue"
	"solrouter/internal/router"
	"solrouter/internal/store"
)

// Processor drives one order through the pipeline stages. It runs inside a
// queue worker: a returned error hands the order back to the queue's retry
// policy.
type Processor struct {
	router *router.Router
	hub    *hub.Hub
	store  store.OrderStore
	log    *slog.Logger
}

// NewProcessor wires a Processor over its dependencies.
func NewProcessor(r *router.Router, h *hub.Hub, orders store.OrderStore, log *slog.Logger) *Processor {
	return &Processor{router: r, hub: h, store: orders, log: log}
}

// Handle processes one claimed job end-to-end:
// PENDING → ROUTING → BUILDING → SUBMITTED → CONFIRMED. Every transition,
// PENDING included, is pushed to the subscribed client first and then
// persisted; a persistence failure aborts the attempt. Any stage error moves
// the order to FAILED and returns the error so the queue can retry.
func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	var ord domain.Order
	if err := json.Unmarshal(job.Payload, &ord); err != nil {
		// A corrupt payload cannot succeed on retry, but failing the
		// attempt is still the only way to surface and retire it.
		return fmt.Errorf("decoding order payload: %w", err)
	}
	ord.Attempts = job.Attempt

	// A retried job re-enters at PENDING regardless of how far the previous
	// attempt got, and the re-entry is visible to subscribers.
	ord.Status = domain.StatusPending

	log := p.log.With("order", ord.ID, "attempt", job.Attempt)
	log.Info("processing order", "tokenIn", ord.TokenIn, "tokenOut", ord.TokenOut)

	if err := p.advance(ctx, &ord, domain.StatusPending, nil, store.Update{}); err != nil {
		return p.fail(ctx, &ord, err)
	}

	if err := p.advance(ctx, &ord, domain.StatusRouting, nil, store.Update{}); err != nil {
		return p.fail(ctx, &ord, err)
	}

	quote, err := p.router.BestQuote(ctx, ord.TokenIn, ord.TokenOut, ord.AmountIn)
	if err != nil {
		return p.fail(ctx, &ord, err)
	}
	log.Info("venue selected", "dex", quote.Dex, "price", quote.Price)

	ord.Dex = quote.Dex
	building := domain.BuildingData{Dex: quote.Dex, Price: quote.Price}
	if err := p.advance(ctx, &ord, domain.StatusBuilding, building, store.Update{Dex: quote.Dex}); err != nil {
		return p.fail(ctx, &ord, err)
	}

	if err := p.advance(ctx, &ord, domain.StatusSubmitted, nil, store.Update{}); err != nil {
		return p.fail(ctx, &ord, err)
	}

	res, err := p.router.ExecuteSwap(ctx, &ord, quote)
	if err != nil {
		return p.fail(ctx, &ord, err)
	}

	ord.ExecutedPrice = res.ExecutedPrice
	ord.TxHash = res.TxHash
	confirmed := domain.ConfirmedData{Dex: res.Dex, Price: res.ExecutedPrice, TxHash: res.TxHash}
	if err := p.advance(ctx, &ord, domain.StatusConfirmed, confirmed, store.Update{
		Dex:           res.Dex,
		ExecutedPrice: res.ExecutedPrice,
		TxHash:        res.TxHash,
	}); err != nil {
		return p.fail(ctx, &ord, err)
	}

	log.Info("order confirmed", "dex", res.Dex, "price", res.ExecutedPrice, "txHash", res.TxHash)
	return nil
}

// advance moves the order to the next status, pushes the event, and persists
// the transition. Push happens before persist, so a subscribed client sees
// the status even if persistence then fails the attempt.
func (p *Processor) advance(ctx context.Context, ord *domain.Order, to domain.OrderStatus, data domain.EventData, upd store.Update) error {
	if err := ord.Transition(to); err != nil {
		return err
	}

	p.hub.SendUpdate(ord.ID, domain.NewStatusEvent(ord.ID, to, data))

	if err := p.store.UpdateStatus(ctx, ord.ID, to, upd); err != nil {
		return fmt.Errorf("persisting %s: %w", to, err)
	}
	return nil
}

// fail records the failure on the order and returns the cause so the queue
// retries or retires the job. The FAILED persist is best-effort: a broken
// store must not mask the original error.
func (p *Processor) fail(ctx context.Context, ord *domain.Order, cause error) error {
	ord.Error = cause.Error()
	p.log.Warn("order attempt failed", "order", ord.ID, "attempt", ord.Attempts, "error", cause)

	p.hub.SendUpdate(ord.ID, domain.NewStatusEvent(ord.ID, domain.StatusFailed, domain.FailedData{Error: ord.Error}))

	if err := p.store.UpdateStatus(ctx, ord.ID, domain.StatusFailed, store.Update{
		Error:    ord.Error,
		Attempts: ord.Attempts,
	}); err != nil {
		p.log.Error("persisting failed status", "order", ord.ID, "error", err)
	}
	return cause
}
