package llm

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit paces calls to next through limiter. A wait aborted by ctx is
// returned as a terminal error.
func WithRateLimit(next Client, limiter *rate.Limiter) Client {
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: "ratelimit", Err: err}
	}
	return r.next.Complete(ctx, req)
}
