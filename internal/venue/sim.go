package venue

import (
	"context"
	"math/rand/v2"
	"time"

	"solrouter/internal/domain"
)

// Compile-time interface check.
var _ Venue = (*Sim)(nil)

// SimConfig parameterises one simulated venue. The base price is drawn
// uniformly from [PriceMin, PriceMax] and then perturbed by a uniform factor
// in [-Perturbation, +Perturbation], so two venues with overlapping bands
// still produce divergent quotes.
type SimConfig struct {
	Name         string
	Fee          float64 // fixed fee fraction, 0 <= fee < 1
	PriceMin     float64
	PriceMax     float64
	Perturbation float64
	QuoteDelay   time.Duration // simulated network round-trip
}

// Sim is a simulated venue. It is purely computational apart from an
// artificial delay standing in for the network round-trip; a production
// implementation would replace it with a wire-protocol client behind the
// same interface.
type Sim struct {
	cfg SimConfig
}

// NewSim creates a simulated venue from the given parameters.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg}
}

// Name returns the configured venue identifier.
func (s *Sim) Name() string {
	return s.cfg.Name
}

// Quote draws a price from the venue's distribution after the configured
// delay. EstimatedOut is exactly amount * price * (1 - fee).
func (s *Sim) Quote(ctx context.Context, tokenIn, tokenOut string, amount float64) (domain.Quote, error) {
	_ = tokenIn
	_ = tokenOut

	if s.cfg.QuoteDelay > 0 {
		select {
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		case <-time.After(s.cfg.QuoteDelay):
		}
	}

	base := s.cfg.PriceMin + rand.Float64()*(s.cfg.PriceMax-s.cfg.PriceMin)
	perturb := 1 + (rand.Float64()*2-1)*s.cfg.Perturbation
	price := base * perturb

	return domain.Quote{
		Dex:          s.cfg.Name,
		Price:        price,
		Fee:          s.cfg.Fee,
		EstimatedOut: amount * price * (1 - s.cfg.Fee),
	}, nil
}
