package airtablehttp

import (
	"context"
	"math"
	"net/http"
	"time"
)

// retryable reports whether resp warrants a retry under this client's
// policy: the canonical 429, mirroring the upstream provider's rate-limit
// signal. Other 4xx/5xx responses are treated as fatal for the call.
func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests
}

// backoff sleeps an exponentially increasing interval before attempt,
// returning early if ctx is cancelled.
func backoff(ctx context.Context, attempt int, base time.Duration) error {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
