package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisBus fans notifications out across server instances. Every instance
// holds one pattern subscription on <prefix>* and redistributes what it
// receives through a LocalBus, so local writes reach local watchers the same
// way remote ones do.
type RedisBus struct {
	client *redis.Client
	prefix string
	pubsub *redis.PubSub
	local  *LocalBus

	closeOnce sync.Once
	done      chan struct{}
}

func NewRedisBus(ctx context.Context, client *redis.Client, prefix string) (*RedisBus, error) {
	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, errors.ErrCodeTransport, "failed to subscribe to change bus")
	}

	b := &RedisBus{
		client: client,
		prefix: prefix,
		pubsub: pubsub,
		local:  NewLocalBus(),
		done:   make(chan struct{}),
	}
	go b.relay()

	return b, nil
}

func (b *RedisBus) relay() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			logger.Warn("Dropping malformed change notification", "channel", msg.Channel, "error", err)
			continue
		}
		n.Collection = strings.TrimPrefix(msg.Channel, b.prefix)
		if err := b.local.Publish(context.Background(), n); err != nil {
			return
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode change notification")
	}
	if err := b.client.Publish(ctx, b.prefix+n.Collection, payload).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "failed to publish change notification")
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, collection string) (<-chan Notification, func(), error) {
	return b.local.Subscribe(ctx, collection)
}

// Close ends the pattern subscription and every local subscriber. The redis
// client stays open; its owner closes it.
func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.pubsub.Close()
		<-b.done
		b.local.Close()
	})
	return err
}
