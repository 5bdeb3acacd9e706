package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mroshb/couple_journal/internal/dbtest"
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/pkg/utils"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx         context.Context
	store       *repositories.Store
	bus         *realtime.LocalBus
	clock       *utils.ManualClock
	users       *UserService
	couples     *CoupleService
	invitations *InvitationService
	sharing     *SharingService
	memories    *MemoryService
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	store := repositories.NewStore(dbtest.OpenTestDB(t))
	bus := realtime.NewLocalBus()
	t.Cleanup(func() { bus.Close() })
	clock := utils.NewManualClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	couples := NewCoupleService(store, bus, clock)
	return &testEnv{
		ctx:         context.Background(),
		store:       store,
		bus:         bus,
		clock:       clock,
		users:       NewUserService(store, bus),
		couples:     couples,
		invitations: NewInvitationService(store, couples, bus, clock, models.DefaultInvitationTTL),
		sharing:     NewSharingService(store, bus, clock),
		memories:    NewMemoryService(store, bus, clock),
	}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.users.EnsureProfile(e.ctx, Profile{
		UserID:      "user-" + strings.ToLower(name),
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) reload(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.store.Users.GetUserByID(id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) invitation(t *testing.T, id string) *models.CoupleInvitation {
	t.Helper()
	inv, err := e.store.Invitations.GetInvitationByID(id, false)
	require.NoError(t, err)
	return inv
}

// pair runs send and accept and returns the new couple.
func (e *testEnv) pair(t *testing.T, inviter, invitee *models.User) *models.Couple {
	t.Helper()
	inv, err := e.invitations.SendInvitation(e.ctx, inviter.ID, invitee.Email, "Let's connect")
	require.NoError(t, err)
	couple, err := e.invitations.AcceptInvitation(e.ctx, invitee.ID, inv.ID)
	require.NoError(t, err)
	return couple
}

func (e *testEnv) memory(t *testing.T, owner *models.User, title string) *models.Memory {
	t.Helper()
	m, err := e.memories.CreateMemory(e.ctx, owner.ID, MemoryInput{Title: title, Content: "We walked by the sea."})
	require.NoError(t, err)
	return m
}
