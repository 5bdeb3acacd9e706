package reconcile

import (
	"context"
	"reflect"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
)

// CacheRepairer rewrites a user's denormalized partner fields when they
// disagree with the couples collection.
type CacheRepairer interface {
	RepairUserCache(ctx context.Context, userID string) (bool, error)
}

// CoupleState is what one user's client believes about their couple.
// Until Settled is true the client is still discovering it.
type CoupleState struct {
	Settled bool            `json:"settled"`
	Couple  *models.Couple  `json:"couple,omitempty"`
	Partner *models.Partner `json:"partner,omitempty"`
	Slot    int             `json:"slot,omitempty"`
}

// Paired reports a settled state with an active couple.
func (s CoupleState) Paired() bool {
	return s.Settled && s.Couple != nil
}

// CoupleReconciler tracks the active couple of one user. A user can sit in
// either slot of a couple, so it watches the slot-1 query first and only
// falls back to the slot-2 query while slot 1 is empty. Whichever query
// yields a document is adopted and the other is closed. When the adopted
// document leaves its query the cycle starts over from slot 1.
type CoupleReconciler struct {
	watcher  *realtime.Watcher
	userID   string
	repairer CacheRepairer
	opts     options

	state  *latest[CoupleState]
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCoupleReconciler begins reconciling in the background. repairer may
// be nil.
func StartCoupleReconciler(ctx context.Context, w *realtime.Watcher, userID string, repairer CacheRepairer, opts ...Option) *CoupleReconciler {
	ctx, cancel := context.WithCancel(ctx)
	r := &CoupleReconciler{
		watcher:  w,
		userID:   userID,
		repairer: repairer,
		opts:     buildOptions(opts),
		state:    newLatest(CoupleState{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		defer close(r.state.ch)
		runWithRetry(ctx, "couple", userID, r.opts.retryDelay, r.cycle)
	}()

	return r
}

// Updates delivers each new state. Only the newest undelivered state is
// kept. The channel closes after Close.
func (r *CoupleReconciler) Updates() <-chan CoupleState {
	return r.state.ch
}

func (r *CoupleReconciler) Current() CoupleState {
	return r.state.get()
}

// Close tears down both subscriptions and waits for the reconciler to stop.
func (r *CoupleReconciler) Close() {
	r.cancel()
	<-r.done
}

func slotQuery(userID string, slot int) realtime.Query {
	field := "user1_id"
	if slot == 2 {
		field = "user2_id"
	}
	return realtime.NewQuery(models.CollectionCouples).
		Where(field, realtime.OpEq, userID).
		Where("status", realtime.OpEq, string(models.CoupleStatusActive)).
		Order("created_at", true).
		Take(1)
}

type slotWatch struct {
	sub *realtime.Subscription[models.Couple]
}

func (s *slotWatch) events() <-chan realtime.Snapshot[models.Couple] {
	if s.sub == nil {
		return nil
	}
	return s.sub.Events()
}

func (s *slotWatch) close() {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

func (s *slotWatch) failure() error {
	if err := s.sub.Err(); err != nil {
		return err
	}
	return errors.New(errors.ErrCodeTransport, "couple subscription ended")
}

// cycle runs the slot state machine until a subscription fails or ctx ends.
// Every transition happens on this goroutine.
func (r *CoupleReconciler) cycle(ctx context.Context) error {
	var q1, q2 slotWatch
	defer q1.close()
	defer q2.close()

	open := func(w *slotWatch, slot int) error {
		sub, err := realtime.Watch[models.Couple](ctx, r.watcher, slotQuery(r.userID, slot))
		if err != nil {
			return err
		}
		w.sub = sub
		return nil
	}

	adopted := 0
	if err := open(&q1, 1); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-q1.events():
			if !ok {
				return q1.failure()
			}
			if len(snap.Docs) > 0 {
				q2.close()
				adopted = 1
				r.adopt(snap.Docs[0], 1)
				continue
			}
			if adopted == 1 {
				adopted = 0
				r.emit(CoupleState{})
			}
			if q2.sub == nil {
				if err := open(&q2, 2); err != nil {
					return err
				}
			}

		case snap, ok := <-q2.events():
			if !ok {
				return q2.failure()
			}
			switch {
			case len(snap.Docs) > 0:
				q1.close()
				adopted = 2
				r.adopt(snap.Docs[0], 2)
			case adopted == 2:
				q2.close()
				adopted = 0
				r.emit(CoupleState{})
				if err := open(&q1, 1); err != nil {
					return err
				}
			default:
				r.settleNone(ctx)
			}
		}
	}
}

func (r *CoupleReconciler) adopt(couple models.Couple, slot int) {
	partner, _ := couple.PartnerOf(r.userID)
	r.emit(CoupleState{
		Settled: true,
		Couple:  &couple,
		Partner: &partner,
		Slot:    slot,
	})
}

func (r *CoupleReconciler) settleNone(ctx context.Context) {
	if !r.emit(CoupleState{Settled: true}) || r.repairer == nil {
		return
	}

	repaired, err := r.repairer.RepairUserCache(ctx, r.userID)
	if err != nil {
		logger.Warn("Failed to repair couple cache", "user_id", r.userID, "error", err)
		return
	}
	if repaired {
		logger.Info("Repaired stale couple cache", "user_id", r.userID)
	}
}

// emit publishes s if it differs from the current state.
func (r *CoupleReconciler) emit(s CoupleState) bool {
	if reflect.DeepEqual(r.state.get(), s) {
		return false
	}
	r.state.set(s)
	return true
}
