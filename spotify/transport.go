package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"albumvibe/config"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	maxRetryAfter   = 30 * time.Second
)

// transport paces every outbound catalog request and retries idempotent ones.
// Only GET and HEAD requests are retried, on transport errors, 429 and 5xx.
type transport struct {
	base        http.RoundTripper
	limiter     *rate.Limiter
	attempts    int
	baseBackoff time.Duration
}

func newTransport(cfg config.SpotifyConfig, base http.RoundTripper) *transport {
	if base == nil {
		base = http.DefaultTransport
	}

	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := cfg.RetryBackoff()
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = cfg.RateLimit
	}

	return &transport{
		base:        base,
		limiter:     rate.NewLimiter(limit, burst),
		attempts:    attempts,
		baseBackoff: backoff,
	}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if !idempotent(req.Method) {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("spotify: rate limiter: %w", err)
		}
		return t.base.RoundTrip(req)
	}

	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("spotify: rate limiter: %w", err)
		}

		resp, err := t.base.RoundTrip(req)
		retryAfter, retry := shouldRetry(ctx, resp, err)
		if !retry || attempt == t.attempts-1 {
			return resp, err
		}

		if err != nil {
			log.Warnf("Retrying %s %s (attempt %d/%d) after error: %v", req.Method, req.URL.Path, attempt+1, t.attempts, err)
		} else {
			log.Warnf("Retrying %s %s (attempt %d/%d) after status %d", req.Method, req.URL.Path, attempt+1, t.attempts, resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		backoff := t.baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func shouldRetry(ctx context.Context, resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		// a cancelled or expired request is final
		return 0, ctx.Err() == nil
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}

	var wait time.Duration
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		wait = time.Duration(seconds) * time.Second
	} else if when, err := http.ParseTime(raw); err == nil {
		wait = time.Until(when)
	}

	if wait <= 0 {
		return 0
	}
	return min(wait, maxRetryAfter)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
