// Package retry retries upstream calls that were rejected by rate limiting.
//
// Only rate-limit failures are retried; every other error is returned on the
// first attempt. Waits grow as BaseDelay * 2^attempt without jitter.
package retry

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy describes how many attempts to make and how long to wait between
// them. Zero fields fall back to the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Notify, if set, is called before each wait.
	Notify func(err error, wait time.Duration)
}

// DefaultPolicy returns the policy used for upstream content calls.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// ceiling is the longest wait p produces, BaseDelay * 2^(MaxAttempts-1),
// saturating at the largest Duration instead of overflowing.
func (p Policy) ceiling() time.Duration {
	d := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// IsRateLimited reports whether err signals upstream rate limiting: either
// an error coded RATE_LIMIT_EXCEEDED, or a 403/429 status whose message
// mentions "rate limit".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.GetCode(err) == errors.CodeRateLimit {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return strings.Contains(strings.ToLower(err.Error()), "rate limit")
		}
	}
	return false
}

// Do calls fn until it succeeds, fails with a non rate-limit error, or
// MaxAttempts is reached. On exhaustion the last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.ceiling()

	op := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !IsRateLimited(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warnf("rate limit hit, retrying in %s: %v", wait, err)
			if p.Notify != nil {
				p.Notify(err, wait)
			}
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	return v, err
}
