package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider holds requests back to stay under a requests-per-minute
// quota.
type RateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows at most rpm requests per minute, with bursts
// up to rpm. rpm <= 0 returns p unchanged.
func NewRateLimitedProvider(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &RateLimitedProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}
	return r.Provider.Complete(ctx, req)
}
