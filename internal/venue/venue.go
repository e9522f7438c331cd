// Package venue defines the Venue interface and provides the simulated
// implementations used for routing decisions and swap execution.
package venue

import (
	"context"

	"solrouter/internal/domain"
)

// Venue abstracts an execution destination that can price a trading pair.
type Venue interface {
	// Name returns the venue identifier (e.g. "raydium", "orca").
	Name() string

	// Quote prices the given pair and amount. Implementations must not fail
	// for positive amounts; the only expected error is context cancellation.
	Quote(ctx context.Context, tokenIn, tokenOut string, amount float64) (domain.Quote, error)
}
