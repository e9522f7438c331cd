// Package router selects the best execution venue for an order by comparing
// concurrently-fetched quotes, and executes the swap against the winner.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/thanhpk/randstr"
	"golang.org/x/sync/errgroup"

	"solrouter/internal/domain"
	"solrouter/internal/venue"
)

// ErrNoVenues is returned by New when no venues are configured.
var ErrNoVenues = errors.New("router: no venues configured")

// Config tunes the simulated swap execution.
type Config struct {
	ExecDelay     time.Duration // base settlement latency
	ExecJitterMax time.Duration // uniform extra latency in [0, ExecJitterMax]
	SlippageMax   float64       // executed price slips by a uniform fraction in [0, SlippageMax)
}

// Router fans quote requests out to every configured venue and picks the
// winner by estimated output.
type Router struct {
	venues []venue.Venue
	cfg    Config
	log    *slog.Logger
}

// New creates a Router over the given venues. Venue order matters: ties on
// estimated output resolve to the earliest venue in the slice.
func New(venues []venue.Venue, cfg Config, log *slog.Logger) (*Router, error) {
	if len(venues) == 0 {
		return nil, ErrNoVenues
	}
	return &Router{venues: venues, cfg: cfg, log: log}, nil
}

// BestQuote requests a quote from every venue concurrently and returns the
// one with the strictly largest estimated output. Latency is bounded by the
// slowest venue, not the sum. On equal outputs the venue configured first
// wins (strict greater-than comparison in configuration order).
func (r *Router) BestQuote(ctx context.Context, tokenIn, tokenOut string, amount float64) (domain.Quote, error) {
	quotes := make([]domain.Quote, len(r.venues))

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range r.venues {
		g.Go(func() error {
			q, err := v.Quote(gctx, tokenIn, tokenOut, amount)
			if err != nil {
				return fmt.Errorf("quoting %s: %w", v.Name(), err)
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Quote{}, err
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.EstimatedOut > best.EstimatedOut {
			best = q
		}
	}

	r.log.Debug("selected venue",
		"dex", best.Dex, "price", best.Price, "estimatedOut", best.EstimatedOut)

	return best, nil
}

// ExecuteSwap settles the order against the quoted venue after a simulated
// execution delay. The executed price differs from the quoted price by a
// random slippage fraction, and the settlement reference is a 64-character
// lowercase hex string. The simulator never fails; the pipeline's retry
// policy exists to absorb the failures a real venue integration would
// surface here.
func (r *Router) ExecuteSwap(ctx context.Context, order *domain.Order, quote domain.Quote) (domain.ExecutionResult, error) {
	delay := r.cfg.ExecDelay
	if r.cfg.ExecJitterMax > 0 {
		delay += time.Duration(rand.Int64N(int64(r.cfg.ExecJitterMax) + 1))
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return domain.ExecutionResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	slippage := rand.Float64() * r.cfg.SlippageMax
	executedPrice := quote.Price * (1 - slippage)

	res := domain.ExecutionResult{
		TxHash:        randstr.Hex(32),
		ExecutedPrice: executedPrice,
		AmountOut:     order.AmountIn * executedPrice * (1 - quote.Fee),
		Dex:           quote.Dex,
	}

	r.log.Debug("swap executed",
		"order", order.ID, "dex", res.Dex, "price", res.ExecutedPrice, "txHash", res.TxHash)

	return res, nil
}
