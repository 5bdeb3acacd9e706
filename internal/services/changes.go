package services

import (
	"context"

	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/pkg/logger"
)

// changeSet collects the documents a transaction touched so watchers can be
// told after commit.
type changeSet map[string][]string

func (c changeSet) add(collection string, ids ...string) {
	if len(ids) == 0 {
		return
	}
	c[collection] = append(c[collection], ids...)
}

// publish notifies watchers. The write already committed, so a failure here
// only delays clients until their next resync.
func (c changeSet) publish(ctx context.Context, bus realtime.Bus) {
	if bus == nil {
		return
	}
	for collection, ids := range c {
		n := realtime.Notification{Collection: collection, IDs: ids}
		if err := bus.Publish(ctx, n); err != nil {
			logger.Warn("Failed to publish change notification",
				"collection", collection,
				"error", err,
			)
		}
	}
}
