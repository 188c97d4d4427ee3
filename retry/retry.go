// Package retry runs an operation under a bounded retry policy with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrMaxAttempts is returned (wrapping the last error) when every attempt
// failed with a retryable error.
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	// IsRetryable decides whether an error is worth another attempt. Nil
	// retries every error.
	IsRetryable func(error) bool `yaml:"-"`
	// Sleep waits between attempts. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error `yaml:"-"`
}

// DefaultPolicy returns three attempts starting at a two second backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// WithDefaults fills zero-valued fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}

// BackOff returns the policy's backoff schedule bound to ctx: no jitter, no
// elapsed-time limit, and MaxAttempts-1 retries.
func (p Policy) BackOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxInterval = p.MaxBackoff
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	p := policy.WithDefaults()

	stopped := false
	operation := func() error {
		if err := ctx.Err(); err != nil {
			stopped = true
			return backoff.Permanent(err)
		}

		err := fn(ctx)
		if err != nil && p.IsRetryable != nil && !p.IsRetryable(err) {
			stopped = true
			return backoff.Permanent(err)
		}
		return err
	}

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep, c: make(chan time.Time, 1)}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.BackOff(ctx), nil, timer)
	switch {
	case err == nil:
		return nil
	case stopped:
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttempts, p.MaxAttempts, err)
}

// sleepTimer adapts Policy.Sleep to backoff.Timer. Start blocks for the
// duration and then fires; a failed sleep never fires, leaving the retry
// loop to observe ctx.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
