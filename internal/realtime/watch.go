package realtime

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
)

// Document is anything a live query can track by identity.
type Document interface {
	DocumentID() string
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

type Change[T Document] struct {
	Type ChangeType
	Doc  T
}

// Snapshot is the full result set after a change plus the delta against the
// previous snapshot. The first snapshot reports every document as added.
type Snapshot[T Document] struct {
	Docs    []T
	Changes []Change[T]
	Initial bool
}

// Watcher opens live queries against one database and change bus.
type Watcher struct {
	db     *gorm.DB
	bus    Bus
	resync time.Duration
}

type WatcherOption func(*Watcher)

// WithResync re-runs every live query on an interval even without
// notifications, which covers writes made outside this service.
func WithResync(interval time.Duration) WatcherOption {
	return func(w *Watcher) { w.resync = interval }
}

func NewWatcher(db *gorm.DB, bus Bus, opts ...WatcherOption) *Watcher {
	w := &Watcher{db: db, bus: bus}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Bus() Bus { return w.bus }

// Subscription delivers snapshots for one live query until cancelled.
type Subscription[T Document] struct {
	events chan Snapshot[T]
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Events is closed when the subscription ends; Err then says why.
func (s *Subscription[T]) Events() <-chan Snapshot[T] {
	return s.events
}

// Cancel ends the subscription and waits for its goroutine. Safe to call
// more than once.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Err returns the failure that ended the subscription, or nil after Cancel.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Watch runs q and keeps running it whenever the collection changes. It
// listens on the bus before the initial read so no write between the two is
// missed. An error from the initial read is returned directly.
func Watch[T Document](ctx context.Context, w *Watcher, q Query) (*Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	notes, unsubscribe, err := w.bus.Subscribe(ctx, q.Collection)
	if err != nil {
		cancel()
		return nil, err
	}

	docs, err := fetch[T](ctx, w.db, q)
	if err != nil {
		unsubscribe()
		cancel()
		return nil, err
	}

	sub := &Subscription[T]{
		events: make(chan Snapshot[T], 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	initial := Snapshot[T]{Docs: docs, Initial: true}
	for _, d := range docs {
		initial.Changes = append(initial.Changes, Change[T]{Type: ChangeAdded, Doc: d})
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)
		defer unsubscribe()
		sub.run(ctx, w, q, notes, docs, initial)
	}()

	return sub, nil
}

func (s *Subscription[T]) run(ctx context.Context, w *Watcher, q Query, notes <-chan Notification, prev []T, initial Snapshot[T]) {
	if !s.deliver(ctx, initial) {
		return
	}

	var tick <-chan time.Time
	if w.resync > 0 {
		ticker := time.NewTicker(w.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notes:
			if !ok {
				if ctx.Err() == nil {
					s.fail(ErrBusClosed)
				}
				return
			}
		case <-tick:
		}

		docs, err := fetch[T](ctx, w.db, q)
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return
		}

		changes := diff(prev, docs)
		if len(changes) == 0 {
			continue
		}
		prev = docs
		if !s.deliver(ctx, Snapshot[T]{Docs: docs, Changes: changes}) {
			return
		}
	}
}

func (s *Subscription[T]) deliver(ctx context.Context, snap Snapshot[T]) bool {
	select {
	case s.events <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func fetch[T Document](ctx context.Context, db *gorm.DB, q Query) ([]T, error) {
	var docs []T
	if err := q.Apply(db.WithContext(ctx)).Find(&docs).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransport, "live query failed")
	}
	return docs, nil
}

// diff reports added and modified documents in next order, then removed
// documents in prev order.
func diff[T Document](prev, next []T) []Change[T] {
	before := make(map[string]T, len(prev))
	for _, d := range prev {
		before[d.DocumentID()] = d
	}

	var changes []Change[T]
	seen := make(map[string]struct{}, len(next))
	for _, d := range next {
		id := d.DocumentID()
		seen[id] = struct{}{}
		old, ok := before[id]
		switch {
		case !ok:
			changes = append(changes, Change[T]{Type: ChangeAdded, Doc: d})
		case !reflect.DeepEqual(old, d):
			changes = append(changes, Change[T]{Type: ChangeModified, Doc: d})
		}
	}
	for _, d := range prev {
		if _, ok := seen[d.DocumentID()]; !ok {
			changes = append(changes, Change[T]{Type: ChangeRemoved, Doc: d})
		}
	}
	return changes
}
