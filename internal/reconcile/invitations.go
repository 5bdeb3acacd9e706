package reconcile

import (
	"context"
	"sync"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/utils"
)

// InvitationState lists one user's pending invitations, newest first.
type InvitationState struct {
	Loaded   bool                    `json:"loaded"`
	Received []models.InvitationView `json:"received"`
	Sent     []models.InvitationView `json:"sent"`
}

// InvitationReconciler keeps the received and sent pending lists of one
// user. Expiry is evaluated against the clock whenever a view is produced,
// so an overdue invitation shows as expired before any sweep touches it.
type InvitationReconciler struct {
	watcher *realtime.Watcher
	userID  string
	clock   utils.Clock
	opts    options

	mu       sync.RWMutex
	loaded   bool
	received []models.CoupleInvitation
	sent     []models.CoupleInvitation

	state  *latest[InvitationState]
	cancel context.CancelFunc
	done   chan struct{}
}

func StartInvitationReconciler(ctx context.Context, w *realtime.Watcher, userID string, clock utils.Clock, opts ...Option) *InvitationReconciler {
	ctx, cancel := context.WithCancel(ctx)
	r := &InvitationReconciler{
		watcher: w,
		userID:  userID,
		clock:   clock,
		opts:    buildOptions(opts),
		state:   newLatest(InvitationState{}),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		defer close(r.state.ch)
		runWithRetry(ctx, "invitations", userID, r.opts.retryDelay, r.cycle)
	}()

	return r
}

func (r *InvitationReconciler) Updates() <-chan InvitationState {
	return r.state.ch
}

// Current recomputes the views at the current time.
func (r *InvitationReconciler) Current() InvitationState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.views()
}

func (r *InvitationReconciler) Close() {
	r.cancel()
	<-r.done
}

func pendingQuery(field, userID string) realtime.Query {
	return realtime.NewQuery(models.CollectionCoupleInvitations).
		Where(field, realtime.OpEq, userID).
		Where("status", realtime.OpEq, string(models.InvitationStatusPending)).
		Order("created_at", true)
}

func (r *InvitationReconciler) cycle(ctx context.Context) error {
	received, err := realtime.Watch[models.CoupleInvitation](ctx, r.watcher, pendingQuery("receiver_id", r.userID))
	if err != nil {
		return err
	}
	defer received.Cancel()

	sent, err := realtime.Watch[models.CoupleInvitation](ctx, r.watcher, pendingQuery("sender_id", r.userID))
	if err != nil {
		return err
	}
	defer sent.Cancel()

	var haveReceived, haveSent bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-received.Events():
			if !ok {
				return subscriptionFailure(received.Err())
			}
			haveReceived = true
			r.mu.Lock()
			r.received = snap.Docs
			r.mu.Unlock()

		case snap, ok := <-sent.Events():
			if !ok {
				return subscriptionFailure(sent.Err())
			}
			haveSent = true
			r.mu.Lock()
			r.sent = snap.Docs
			r.mu.Unlock()
		}

		if !haveReceived || !haveSent {
			continue
		}

		r.mu.Lock()
		r.loaded = true
		state := r.views()
		r.mu.Unlock()
		r.state.set(state)
	}
}

// views must be called with mu held.
func (r *InvitationReconciler) views() InvitationState {
	now := r.clock.Now()
	state := InvitationState{
		Loaded:   r.loaded,
		Received: make([]models.InvitationView, 0, len(r.received)),
		Sent:     make([]models.InvitationView, 0, len(r.sent)),
	}
	for i := range r.received {
		state.Received = append(state.Received, r.received[i].ViewFor(r.userID, now))
	}
	for i := range r.sent {
		state.Sent = append(state.Sent, r.sent[i].ViewFor(r.userID, now))
	}
	return state
}

func subscriptionFailure(err error) error {
	if err != nil {
		return err
	}
	return errors.New(errors.ErrCodeTransport, "invitation subscription ended")
}
