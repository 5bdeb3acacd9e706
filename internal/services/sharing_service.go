package services

import (
	"context"
	"time"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/mroshb/couple_journal/pkg/utils"
)

type SharingService struct {
	store *repositories.Store
	bus   realtime.Bus
	clock utils.Clock
}

func NewSharingService(store *repositories.Store, bus realtime.Bus, clock utils.Clock) *SharingService {
	return &SharingService{
		store: store,
		bus:   bus,
		clock: clock,
	}
}

// ShareMemory grants the owner's partner read access to a snapshot of the
// memory. The couple row lock keeps a disconnect from landing mid-share.
func (s *SharingService) ShareMemory(ctx context.Context, ownerID, coupleID, memoryID string) (*models.SharedMemory, error) {
	var share *models.SharedMemory
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		couple, err := tx.Couples.GetCoupleByID(coupleID, true)
		if err != nil {
			if errors.CodeOf(err) == errors.ErrCodeNotFound {
				return errors.ErrNoActiveCouple
			}
			return err
		}
		if !couple.IsActive() {
			return errors.ErrNoActiveCouple
		}
		if !couple.HasParticipant(ownerID) {
			return errors.ErrNotAuthorized
		}

		memory, err := tx.Memories.GetMemoryByID(memoryID)
		if err != nil {
			return err
		}
		if memory.OwnerID != ownerID {
			return errors.ErrNotOwner
		}

		share, err = grant(tx, couple, memory, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	changes := changeSet{}
	changes.add(models.CollectionSharedMemories, share.ID)
	changes.publish(ctx, s.bus)

	logger.Info("Memory shared",
		"memory_id", memoryID,
		"couple_id", coupleID,
		"shared_with", share.SharedWithID,
	)
	return share, nil
}

// grant writes the share for memory within couple. The caller has checked
// the couple is active and memory belongs to one of its participants.
func grant(tx *repositories.Store, couple *models.Couple, memory *models.Memory, now time.Time) (*models.SharedMemory, error) {
	partner, _ := couple.PartnerOf(memory.OwnerID)

	existing, err := tx.Shares.FindShare(memory.ID, partner.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.ErrAlreadyShared
	}

	share := &models.SharedMemory{
		MemoryID:     memory.ID,
		OwnerID:      memory.OwnerID,
		SharedWithID: partner.ID,
		SharedBy:     memory.OwnerID,
		CoupleID:     couple.ID,
		SharedAt:     now,
		MemoryData:   memory.Snapshot(),
	}
	if err := tx.Shares.CreateShare(share); err != nil {
		return nil, err
	}
	return share, nil
}

// UnshareMemory revokes the grant of memoryID made under coupleID.
func (s *SharingService) UnshareMemory(ctx context.Context, ownerID, memoryID, coupleID string) error {
	var shareID string
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		share, err := tx.Shares.FindShareInCouple(memoryID, coupleID)
		if err != nil {
			return err
		}
		if share == nil {
			return errors.ErrNotFound
		}
		if share.OwnerID != ownerID {
			return errors.ErrNotOwner
		}

		shareID = share.ID
		return tx.Shares.DeleteShare(share.ID, ownerID)
	})
	if err != nil {
		return err
	}

	changes := changeSet{}
	changes.add(models.CollectionSharedMemories, shareID)
	changes.publish(ctx, s.bus)

	logger.Info("Memory unshared", "memory_id", memoryID, "couple_id", coupleID)
	return nil
}

// SharedWithMe lists what partners have shared with the user, built from
// the stored snapshots only.
func (s *SharingService) SharedWithMe(ctx context.Context, userID string) ([]models.SharedMemoryView, error) {
	store := s.store.WithContext(ctx)
	shares, err := store.Shares.GetSharedWith(userID)
	if err != nil {
		return nil, err
	}
	return annotate(store, shares)
}

// SharedByMe lists the grants the user has made.
func (s *SharingService) SharedByMe(ctx context.Context, userID string) ([]models.SharedMemoryView, error) {
	store := s.store.WithContext(ctx)
	shares, err := store.Shares.GetSharedBy(userID)
	if err != nil {
		return nil, err
	}
	return annotate(store, shares)
}

func annotate(store *repositories.Store, shares []models.SharedMemory) ([]models.SharedMemoryView, error) {
	ids := make([]string, 0, len(shares))
	seen := make(map[string]struct{}, len(shares))
	for _, sh := range shares {
		if _, ok := seen[sh.CoupleID]; !ok {
			seen[sh.CoupleID] = struct{}{}
			ids = append(ids, sh.CoupleID)
		}
	}

	statuses, err := store.Couples.GetStatuses(ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.SharedMemoryView, 0, len(shares))
	for _, sh := range shares {
		views = append(views, models.SharedMemoryView{
			SharedMemory: sh,
			Orphaned:     statuses[sh.CoupleID] != models.CoupleStatusActive,
		})
	}
	return views, nil
}
