// Package fallback runs an ordered list of strategies until one succeeds.
package fallback

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Strategy is one way of producing an output.
type Strategy[In, Out any] interface {
	Name() string
	Attempt(ctx context.Context, input In) (Out, error)
}

// Chain tries its strategies in order.
type Chain[In, Out any] struct {
	strategies []Strategy[In, Out]
	log        zerolog.Logger
}

// NewChain instantiates and returns a chain. Nil strategies are skipped.
func NewChain[In, Out any](log zerolog.Logger, strategies ...Strategy[In, Out]) *Chain[In, Out] {
	chain := &Chain[In, Out]{log: log}
	for _, strategy := range strategies {
		if strategy != nil {
			chain.strategies = append(chain.strategies, strategy)
		}
	}
	return chain
}

// Len returns the number of strategies.
func (c *Chain[In, Out]) Len() int { return len(c.strategies) }

// Attempt returns the output of the first strategy that succeeds, along with its name.
// If every strategy fails, the last error is returned.
func (c *Chain[In, Out]) Attempt(ctx context.Context, input In) (Out, string, error) {
	var zero Out
	var lastErr error
	for i, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", errors.Wrap(err, "fallback chain interrupted")
		}
		out, err := strategy.Attempt(ctx, input)
		if err == nil {
			if i > 0 {
				c.log.Info().Str("strategy", strategy.Name()).Int("attempt", i+1).Msg("fallback succeeded")
			}
			return out, strategy.Name(), nil
		}
		c.log.Warn().Err(err).Str("strategy", strategy.Name()).Int("attempt", i+1).Msg("strategy failed")
		lastErr = err
	}
	if lastErr == nil {
		return zero, "", errors.New("no strategies configured")
	}
	return zero, "", errors.Wrap(lastErr, "all strategies failed")
}

// Func adapts a function into a strategy.
type Func[In, Out any] struct {
	ID string
	Fn func(ctx context.Context, input In) (Out, error)
}

func (f *Func[In, Out]) Name() string { return f.ID }

func (f *Func[In, Out]) Attempt(ctx context.Context, input In) (Out, error) {
	return f.Fn(ctx, input)
}
