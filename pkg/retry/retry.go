// Package retry provides the rate-limited retry executor used for every
// external provider call: a sliding-window request budget per provider, a
// circuit breaker, and jittered exponential backoff bounded by the caller's
// deadline.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
)

// Config holds per-provider retry and rate-limit configuration
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64

	// WindowLimit caps calls per sliding Window; zero disables limiting.
	WindowLimit int
	Window      time.Duration

	// MaxWait bounds how long a call may queue for a rate-limit slot.
	// Zero means fail fast with a rate limit error.
	MaxWait time.Duration
}

// DefaultConfig returns a default provider configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.3,
		WindowLimit:   0,
		Window:        time.Minute,
		MaxWait:       2 * time.Second,
	}
}

// Executor runs provider calls under rate limiting, circuit breaking and
// bounded retries. Safe for concurrent use.
type Executor struct {
	mu       sync.Mutex
	defaults Config
	configs  map[string]Config
	windows  map[string]*slidingWindow
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewExecutor creates an executor with the given default configuration
func NewExecutor(defaults Config) *Executor {
	if defaults.MaxAttempts <= 0 {
		defaults.MaxAttempts = 3
	}
	if defaults.Window <= 0 {
		defaults.Window = time.Minute
	}
	return &Executor{
		defaults: defaults,
		configs:  make(map[string]Config),
		windows:  make(map[string]*slidingWindow),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Configure overrides the configuration for one provider
func (e *Executor) Configure(providerID string, cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = e.defaults.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = e.defaults.Window
	}
	e.configs[providerID] = cfg
	delete(e.windows, providerID)
}

// Execute runs fn for the given provider. Transient failures are retried with
// jittered exponential backoff up to the attempt bound; non-retryable errors
// propagate immediately. If the remaining time to the context deadline is less
// than the next planned delay, Execute fails with a timeout error instead of
// sleeping past the caller's budget.
func (e *Executor) Execute(ctx context.Context, providerID string, fn func(context.Context) error) error {
	cfg := e.configFor(providerID)

	if err := e.acquireSlot(ctx, providerID, cfg); err != nil {
		return err
	}

	breaker := e.breakerFor(providerID)

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = cfg.InitialDelay
	schedule.MaxInterval = cfg.MaxDelay
	schedule.Multiplier = cfg.BackoffFactor
	schedule.RandomizationFactor = cfg.Jitter
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return deadlineError(providerID, attempt-1, err, lastErr)
		}

		_, err := breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperrors.NewProviderError(
				fmt.Sprintf("%s: circuit breaker open", providerID), lastErr)
		}
		if !apperrors.IsRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return apperrors.NewTimeoutError(
				fmt.Sprintf("%s: remaining budget shorter than next retry delay", providerID), lastErr)
		}

		log.Debug().
			Str("provider", providerID).
			Int("attempt", attempt).
			Dur("next_delay", delay).
			Err(err).
			Msg("provider call failed, retrying")

		select {
		case <-ctx.Done():
			return deadlineError(providerID, attempt, ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}

	return apperrors.NewProviderError(
		fmt.Sprintf("%s: max retry attempts (%d) exceeded", providerID, cfg.MaxAttempts), lastErr)
}

// acquireSlot enforces the sliding-window budget: it either admits the call,
// queues it for a bounded wait, or fails fast with a rate limit error.
func (e *Executor) acquireSlot(ctx context.Context, providerID string, cfg Config) error {
	if cfg.WindowLimit <= 0 {
		return nil
	}

	window := e.windowFor(providerID, cfg)
	waited := time.Duration(0)
	for {
		ok, retryIn := window.tryAcquire()
		if ok {
			return nil
		}
		if waited+retryIn > cfg.MaxWait {
			return apperrors.NewRateLimitError(
				fmt.Sprintf("%s: request budget of %d per %s exhausted", providerID, cfg.WindowLimit, cfg.Window))
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < retryIn {
			return apperrors.NewTimeoutError(
				fmt.Sprintf("%s: deadline exhausted while queued for rate-limit slot", providerID), nil)
		}
		select {
		case <-ctx.Done():
			return apperrors.NewTimeoutError(
				fmt.Sprintf("%s: canceled while queued for rate-limit slot", providerID), ctx.Err())
		case <-time.After(retryIn):
			waited += retryIn
		}
	}
}

func (e *Executor) configFor(providerID string) Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg, ok := e.configs[providerID]; ok {
		return cfg
	}
	return e.defaults
}

func (e *Executor) windowFor(providerID string, cfg Config) *slidingWindow {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.windows[providerID]; ok {
		return w
	}
	w := newSlidingWindow(cfg.WindowLimit, cfg.Window)
	e.windows[providerID] = w
	return w
}

func (e *Executor) breakerFor(providerID string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[providerID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})
	e.breakers[providerID] = b
	return b
}

func deadlineError(providerID string, attempts int, ctxErr, lastErr error) error {
	msg := fmt.Sprintf("%s: aborted after %d attempts", providerID, attempts)
	if lastErr != nil {
		return apperrors.NewTimeoutError(msg, fmt.Errorf("%w (last error: %v)", ctxErr, lastErr))
	}
	return apperrors.NewTimeoutError(msg, ctxErr)
}

// slidingWindow tracks call timestamps over a rolling interval.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
	}
}

// tryAcquire admits the call if the rolling window has a free slot, otherwise
// returns how long until the oldest tracked call leaves the window.
func (w *slidingWindow) tryAcquire() (bool, time.Duration) {
	now := time.Now()
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.calls[:0]
	for _, t := range w.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.calls = kept

	if len(w.calls) < w.limit {
		w.calls = append(w.calls, now)
		return true, 0
	}

	retryIn := w.calls[0].Sub(cutoff)
	if retryIn <= 0 {
		retryIn = time.Millisecond
	}
	return false, retryIn
}
