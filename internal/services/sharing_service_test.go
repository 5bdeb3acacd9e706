package services

import (
	"testing"
	"time"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharing_ShareAndRead(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")
	couple := env.pair(t, alice, bob)
	memory := env.memory(t, bob, "First trip")

	share, err := env.sharing.ShareMemory(env.ctx, bob.ID, couple.ID, memory.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, share.SharedWithID)
	assert.Equal(t, bob.ID, share.OwnerID)
	assert.Equal(t, bob.ID, share.SharedBy)
	assert.True(t, share.CanView)
	assert.Equal(t, "First trip", share.MemoryData.Title)

	withAlice, err := env.sharing.SharedWithMe(env.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, withAlice, 1)
	assert.Equal(t, memory.ID, withAlice[0].MemoryID)
	assert.False(t, withAlice[0].Orphaned)

	byBob, err := env.sharing.SharedByMe(env.ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, byBob, 1)

	_, err = env.sharing.ShareMemory(env.ctx, bob.ID, couple.ID, memory.ID)
	assert.ErrorIs(t, err, errors.ErrAlreadyShared)
}

func TestSharing_ShareErrors(t *testing.T) {
	env := setup(t)
	alice, bob, carol := env.user(t, "Alice"), env.user(t, "Bob"), env.user(t, "Carol")
	couple := env.pair(t, alice, bob)
	bobs := env.memory(t, bob, "Bob's")
	carols := env.memory(t, carol, "Carol's")

	tests := []struct {
		name     string
		ownerID  string
		coupleID string
		memoryID string
		want     error
	}{
		{name: "Not the owner", ownerID: alice.ID, coupleID: couple.ID, memoryID: bobs.ID, want: errors.ErrNotOwner},
		{name: "Outsider", ownerID: carol.ID, coupleID: couple.ID, memoryID: carols.ID, want: errors.ErrNotAuthorized},
		{name: "Unknown couple", ownerID: bob.ID, coupleID: "missing", memoryID: bobs.ID, want: errors.ErrNoActiveCouple},
		{name: "Unknown memory", ownerID: bob.ID, coupleID: couple.ID, memoryID: "missing", want: errors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.sharing.ShareMemory(env.ctx, tt.ownerID, tt.coupleID, tt.memoryID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, env.couples.Disconnect(env.ctx, alice.ID, couple.ID))
	_, err := env.sharing.ShareMemory(env.ctx, bob.ID, couple.ID, bobs.ID)
	assert.ErrorIs(t, err, errors.ErrNoActiveCouple)
}

func TestSharing_Unshare(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")
	couple := env.pair(t, alice, bob)
	memory := env.memory(t, alice, "Picnic")

	_, err := env.sharing.ShareMemory(env.ctx, alice.ID, couple.ID, memory.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.sharing.UnshareMemory(env.ctx, bob.ID, memory.ID, couple.ID), errors.ErrNotOwner)

	require.NoError(t, env.sharing.UnshareMemory(env.ctx, alice.ID, memory.ID, couple.ID))
	withBob, err := env.sharing.SharedWithMe(env.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, withBob)

	assert.ErrorIs(t, env.sharing.UnshareMemory(env.ctx, alice.ID, memory.ID, couple.ID), errors.ErrNotFound)

	// unsharing then sharing again is allowed
	_, err = env.sharing.ShareMemory(env.ctx, alice.ID, couple.ID, memory.ID)
	require.NoError(t, err)
}

func TestSharing_DisconnectLeavesOrphanedShares(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")
	couple := env.pair(t, alice, bob)
	memory := env.memory(t, alice, "Anniversary")

	_, err := env.sharing.ShareMemory(env.ctx, alice.ID, couple.ID, memory.ID)
	require.NoError(t, err)
	require.NoError(t, env.couples.Disconnect(env.ctx, bob.ID, couple.ID))

	withBob, err := env.sharing.SharedWithMe(env.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, withBob, 1)
	assert.True(t, withBob[0].Orphaned)
	assert.Equal(t, "Anniversary", withBob[0].MemoryData.Title)

	// the owner can still revoke an orphaned grant
	require.NoError(t, env.sharing.UnshareMemory(env.ctx, alice.ID, memory.ID, couple.ID))
}

func TestSharing_SnapshotIsNotLive(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")
	couple := env.pair(t, alice, bob)
	memory := env.memory(t, alice, "Original title")

	_, err := env.sharing.ShareMemory(env.ctx, alice.ID, couple.ID, memory.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.DB().Model(&models.Memory{}).
		Where("id = ?", memory.ID).Update("title", "Edited title").Error)

	withBob, err := env.sharing.SharedWithMe(env.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, withBob, 1)
	assert.Equal(t, "Original title", withBob[0].MemoryData.Title)
}

func TestMemory_AutoShare(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")
	couple := env.pair(t, alice, bob)

	env.memory(t, alice, "Before enabling")
	withBob, err := env.sharing.SharedWithMe(env.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, withBob)

	enabled := true
	_, err = env.couples.UpdateSettings(env.ctx, bob.ID, couple.ID, models.SettingsPatch{AutoShareNewMemories: &enabled})
	require.NoError(t, err)

	auto := env.memory(t, alice, "After enabling")
	withBob, err = env.sharing.SharedWithMe(env.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, withBob, 1)
	assert.Equal(t, auto.ID, withBob[0].MemoryID)
	assert.Equal(t, couple.ID, withBob[0].CoupleID)
}

func TestMemory_CreateAndGet(t *testing.T) {
	env := setup(t)
	alice, bob := env.user(t, "Alice"), env.user(t, "Bob")

	when := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
	m, err := env.memories.CreateMemory(env.ctx, alice.ID, MemoryInput{
		Title:      "  <i>Christmas</i> eve ",
		Content:    "Snow <script>bad()</script>everywhere",
		MemoryDate: when,
		Tags:       []string{"winter", " family "},
		PhotoURLs:  []string{"https://photos.example.com/1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Christmas eve", m.Title)
	assert.Equal(t, "Snow everywhere", m.Content)
	assert.Equal(t, []string{"winter", "family"}, m.Tags)

	got, err := env.memories.GetMemory(env.ctx, alice.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Christmas eve", got.Title)
	assert.True(t, got.MemoryDate.Equal(when))
	assert.Equal(t, []string{"https://photos.example.com/1.jpg"}, got.PhotoURLs)

	_, err = env.memories.GetMemory(env.ctx, bob.ID, m.ID)
	assert.ErrorIs(t, err, errors.ErrNotOwner)

	_, err = env.memories.CreateMemory(env.ctx, alice.ID, MemoryInput{Title: "<b></b>"})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = env.memories.CreateMemory(env.ctx, alice.ID, MemoryInput{Title: "ok", PhotoURLs: []string{"not a url"}})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestUser_EnsureProfile(t *testing.T) {
	env := setup(t)

	created, err := env.users.EnsureProfile(env.ctx, Profile{UserID: "u-1", Email: " Pat@Example.com", DisplayName: "Pat"})
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", created.Email)
	assert.Equal(t, models.UserCoupleStatusSingle, created.CoupleStatus)

	renamed, err := env.users.EnsureProfile(env.ctx, Profile{UserID: "u-1", Email: "pat@example.com", DisplayName: "Patricia"})
	require.NoError(t, err)
	assert.Equal(t, "Patricia", renamed.DisplayName)
	assert.Equal(t, "Patricia", env.reload(t, "u-1").DisplayName)

	_, err = env.users.EnsureProfile(env.ctx, Profile{UserID: "u-2", Email: "PAT@example.com", DisplayName: "Imposter"})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err), "emails are unique")

	_, err = env.users.EnsureProfile(env.ctx, Profile{UserID: "u-3", Email: "nope", DisplayName: "X"})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
