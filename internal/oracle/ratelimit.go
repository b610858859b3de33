package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Oracle
	limiter *rate.Limiter
}

// RateLimited waits on limiter before every Judge call. Free model tiers reject
// bursts, so callers share one limiter per credential.
func RateLimited(o Oracle, limiter *rate.Limiter) Oracle {
	return &rateLimited{Oracle: o, limiter: limiter}
}

func (r *rateLimited) Judge(ctx context.Context, req Request) (Judgment, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Judgment{}, fmt.Errorf("waiting for rate limit: %w", err)
	}
	return r.Oracle.Judge(ctx, req)
}

func (r *rateLimited) Close() error {
	return Close(r.Oracle)
}
