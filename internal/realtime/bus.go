package realtime

import (
	"context"
	"sync"

	"github.com/mroshb/couple_journal/pkg/errors"
)

// Notification tells watchers that documents in a collection changed.
// IDs is informational; watchers always re-run their query.
type Notification struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids,omitempty"`
}

// Bus carries change notifications from writers to live queries.
type Bus interface {
	Publish(ctx context.Context, n Notification) error
	// Subscribe returns a channel of notifications for one collection and a
	// function that ends the subscription. The channel is closed when the
	// subscription ends or the bus closes.
	Subscribe(ctx context.Context, collection string) (<-chan Notification, func(), error)
	Close() error
}

var ErrBusClosed = errors.New(errors.ErrCodeTransport, "change bus closed")

// LocalBus delivers notifications inside one process. Each subscriber has a
// one-slot buffer; a notification arriving while the slot is full is merged
// into the pending one, since watchers only need to know a re-query is due.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Notification
	nextID uint64
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[uint64]chan Notification)}
}

func (b *LocalBus) Publish(ctx context.Context, n Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for _, ch := range b.subs[n.Collection] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, collection string) (<-chan Notification, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Notification, 1)
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[uint64]chan Notification)
	}
	b.subs[collection][id] = ch

	var once sync.Once
	remove := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[collection]; ok {
				if _, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, collection)
				}
			}
		})
	}
	stop := context.AfterFunc(ctx, remove)
	unsubscribe := func() {
		stop()
		remove()
	}

	return ch, unsubscribe, nil
}

// Subscribers reports how many subscriptions are open on a collection.
func (b *LocalBus) Subscribers(collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[collection])
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for _, ch := range set {
			close(ch)
		}
	}
	b.subs = make(map[string]map[uint64]chan Notification)
	return nil
}
