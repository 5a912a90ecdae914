package oracle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Oracle
	limiter *rate.Limiter
}

// WithRateLimit caps calls to perMinute requests, with a burst of one.
// Waiting for a token respects ctx, so the analysis timeout bounds it.
func WithRateLimit(o Oracle, perMinute int) Oracle {
	if perMinute <= 0 {
		return o
	}
	return &rateLimited{
		next:    o,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *rateLimited) Name() string { return r.next.Name() }

func (r *rateLimited) Suggest(ctx context.Context, p Prompt) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limit: %w", err)
	}
	return r.next.Suggest(ctx, p)
}
