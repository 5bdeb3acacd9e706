package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/mroshb/couple_journal/pkg/logger"
)

const defaultRetryDelay = 2 * time.Second

// latest keeps the most recent state and offers it on a one-slot channel.
// A reader that falls behind only ever sees the newest value.
type latest[T any] struct {
	mu      sync.RWMutex
	current T
	ch      chan T
}

func newLatest[T any](initial T) *latest[T] {
	return &latest[T]{current: initial, ch: make(chan T, 1)}
}

// set must only be called from the owning reconciler goroutine.
func (l *latest[T]) set(v T) {
	l.mu.Lock()
	l.current = v
	l.mu.Unlock()

	select {
	case <-l.ch:
	default:
	}
	l.ch <- v
}

func (l *latest[T]) get() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// runWithRetry runs cycle until ctx ends, waiting delay after each failure.
func runWithRetry(ctx context.Context, name, userID string, delay time.Duration, cycle func(context.Context) error) {
	for {
		err := cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Reconciler subscription failed, retrying",
			"reconciler", name,
			"user_id", userID,
			"retry_in", delay.String(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type Option func(*options)

type options struct {
	retryDelay time.Duration
}

// WithRetryDelay sets how long a reconciler waits before reopening its
// subscriptions after a failure.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

func buildOptions(opts []Option) options {
	o := options{retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
