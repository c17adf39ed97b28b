package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"kwik.app/dispatch/internal/model"
)

// ErrRateLimited is returned, wrapped in ErrTriageUnavailable, when no token
// became available before the caller's context ended.
var ErrRateLimited = errors.New("rate limited")

// NewGuardedProvider puts the breaker inside the rate limiter, so only calls
// that reach the extractor count toward opening it. perSecond <= 0 disables
// rate limiting.
func NewGuardedProvider(next Provider, perSecond float64, burst int, consecutiveFailures uint32, cooldown time.Duration) Provider {
	guarded := NewBreakerProvider(next, consecutiveFailures, cooldown)
	if perSecond > 0 {
		guarded = NewRateLimitedProvider(guarded, perSecond, burst)
	}
	return guarded
}

type rateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider caps extractor calls at perSecond with the given burst.
// A caller that cannot get a token before its context ends gets ErrTriageUnavailable.
func NewRateLimitedProvider(next Provider, perSecond float64, burst int) Provider {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *rateLimitedProvider) Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrTriageUnavailable, ErrRateLimited, err)
	}
	return p.next.Extract(ctx, transcript)
}

type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProvider opens after consecutiveFailures failed extractions and
// rejects calls for cooldown before probing again. Rate limit rejections do
// not count as failures.
func NewBreakerProvider(next Provider, consecutiveFailures uint32, cooldown time.Duration) Provider {
	settings := gobreaker.Settings{
		Name:        "triage-extractor",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerProvider{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (p *breakerProvider) Extract(ctx context.Context, transcript string) (*model.TriageExtraction, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.Extract(ctx, transcript)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrTriageUnavailable, err)
		}
		return nil, err
	}
	return out.(*model.TriageExtraction), nil
}
