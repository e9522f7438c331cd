package router

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"solrouter/internal/domain"
	"solrouter/internal/venue"
)

// fixedVenue returns a canned quote after an optional delay.
type fixedVenue struct {
	name  string
	quote domain.Quote
	delay time.Duration
	err   error
}

func (v *fixedVenue) Name() string { return v.name }

func (v *fixedVenue) Quote(ctx context.Context, tokenIn, tokenOut string, amount float64) (domain.Quote, error) {
	if v.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		case <-time.After(v.delay):
		}
	}
	if v.err != nil {
		return domain.Quote{}, v.err
	}
	return v.quote, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewRequiresVenues(t *testing.T) {
	if _, err := New(nil, Config{}, testLogger()); err != ErrNoVenues {
		t.Fatalf("New with no venues error = %v, want ErrNoVenues", err)
	}
}

func TestBestQuotePicksLargerOutput(t *testing.T) {
	a := &fixedVenue{name: "a", quote: domain.Quote{Dex: "a", Price: 10, Fee: 0.003, EstimatedOut: 99.7}}
	b := &fixedVenue{name: "b", quote: domain.Quote{Dex: "b", Price: 10, Fee: 0.002, EstimatedOut: 99.8}}

	r, err := New([]venue.Venue{a, b}, Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q, err := r.BestQuote(context.Background(), "SOL", "USDC", 10)
	if err != nil {
		t.Fatalf("BestQuote: %v", err)
	}
	if q.Dex != "b" {
		t.Errorf("winner = %q, want %q (larger estimated output)", q.Dex, "b")
	}
}

func TestBestQuoteTieBreaksToFirstVenue(t *testing.T) {
	a := &fixedVenue{name: "a", quote: domain.Quote{Dex: "a", EstimatedOut: 100}}
	b := &fixedVenue{name: "b", quote: domain.Quote{Dex: "b", EstimatedOut: 100}}

	r, err := New([]venue.Venue{a, b}, Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q, err := r.BestQuote(context.Background(), "SOL", "USDC", 10)
	if err != nil {
		t.Fatalf("BestQuote: %v", err)
	}
	if q.Dex != "a" {
		t.Errorf("tie should resolve to the first configured venue, got %q", q.Dex)
	}
}

func TestBestQuoteFetchesConcurrently(t *testing.T) {
	const delay = 100 * time.Millisecond
	a := &fixedVenue{name: "a", delay: delay, quote: domain.Quote{Dex: "a", EstimatedOut: 1}}
	b := &fixedVenue{name: "b", delay: delay, quote: domain.Quote{Dex: "b", EstimatedOut: 2}}

	r, err := New([]venue.Venue{a, b}, Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if _, err := r.BestQuote(context.Background(), "SOL", "USDC", 10); err != nil {
		t.Fatalf("BestQuote: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < delay {
		t.Errorf("BestQuote returned in %v, faster than a single venue's delay %v", elapsed, delay)
	}
	if elapsed >= 2*delay {
		t.Errorf("BestQuote took %v; venues appear to have been queried sequentially", elapsed)
	}
}

func TestBestQuotePropagatesVenueError(t *testing.T) {
	a := &fixedVenue{name: "a", quote: domain.Quote{Dex: "a", EstimatedOut: 1}}
	b := &fixedVenue{name: "b", err: context.DeadlineExceeded}

	r, err := New([]venue.Venue{a, b}, Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.BestQuote(context.Background(), "SOL", "USDC", 10); err == nil {
		t.Fatal("BestQuote should fail when any venue fails")
	}
}

func TestExecuteSwapInvariants(t *testing.T) {
	a := &fixedVenue{name: "a"}
	r, err := New([]venue.Venue{a}, Config{SlippageMax: 0.01}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order := &domain.Order{ID: "o1", AmountIn: 100}
	quote := domain.Quote{Dex: "a", Price: 25, Fee: 0.003}

	for i := 0; i < 50; i++ {
		res, err := r.ExecuteSwap(context.Background(), order, quote)
		if err != nil {
			t.Fatalf("ExecuteSwap: %v", err)
		}
		if len(res.TxHash) != 64 {
			t.Fatalf("txHash length = %d, want 64", len(res.TxHash))
		}
		if strings.ToLower(res.TxHash) != res.TxHash || strings.Trim(res.TxHash, "0123456789abcdef") != "" {
			t.Fatalf("txHash %q is not lowercase hex", res.TxHash)
		}
		if res.ExecutedPrice <= 0 {
			t.Fatalf("executedPrice = %v, want > 0", res.ExecutedPrice)
		}
		// Slippage only ever moves the price against the quote, within bound.
		if res.ExecutedPrice > quote.Price || res.ExecutedPrice < quote.Price*(1-0.01) {
			t.Fatalf("executedPrice %v outside slippage bound of quoted %v", res.ExecutedPrice, quote.Price)
		}
		if want := order.AmountIn * res.ExecutedPrice * (1 - quote.Fee); res.AmountOut != want {
			t.Fatalf("amountOut = %v, want exactly %v", res.AmountOut, want)
		}
		if res.Dex != "a" {
			t.Fatalf("result dex = %q, want %q", res.Dex, "a")
		}
	}
}

func TestExecuteSwapDelayFloor(t *testing.T) {
	a := &fixedVenue{name: "a"}
	const floor = 50 * time.Millisecond
	r, err := New([]venue.Venue{a}, Config{ExecDelay: floor, ExecJitterMax: 20 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if _, err := r.ExecuteSwap(context.Background(), &domain.Order{AmountIn: 1}, domain.Quote{Price: 1}); err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if elapsed := time.Since(start); elapsed < floor {
		t.Errorf("swap settled after %v, want at least %v", elapsed, floor)
	}
}

func TestExecuteSwapUniqueHashes(t *testing.T) {
	a := &fixedVenue{name: "a"}
	r, err := New([]venue.Venue{a}, Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		res, err := r.ExecuteSwap(context.Background(), &domain.Order{AmountIn: 1}, domain.Quote{Price: 1})
		if err != nil {
			t.Fatalf("ExecuteSwap: %v", err)
		}
		if seen[res.TxHash] {
			t.Fatalf("duplicate settlement reference %q", res.TxHash)
		}
		seen[res.TxHash] = true
	}
}
