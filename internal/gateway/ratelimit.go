package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// newLimiter builds a token-bucket limiter that refills at
// requestsPerMinute/60 tokens per second (600 requests/minute on average
// by default) and allows bursts of requestsPerMinute/10+1 requests.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	perSecond := rate.Limit(float64(requestsPerMinute) / 60.0)
	return rate.NewLimiter(perSecond, requestsPerMinute/10+1)
}

func waitForSlot(ctx context.Context, l *rate.Limiter) error {
	return l.Wait(ctx)
}
