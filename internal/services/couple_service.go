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

type CoupleService struct {
	store *repositories.Store
	bus   realtime.Bus
	clock utils.Clock
}

func NewCoupleService(store *repositories.Store, bus realtime.Bus, clock utils.Clock) *CoupleService {
	return &CoupleService{
		store: store,
		bus:   bus,
		clock: clock,
	}
}

// createCouple is only reachable from invitation acceptance. The inviter
// takes slot 1. Callers hold row locks on both users.
func (s *CoupleService) createCouple(tx *repositories.Store, inviter, invitee *models.User, invitationID string, now time.Time) (*models.Couple, error) {
	couple := &models.Couple{
		User1ID:      inviter.ID,
		User1Name:    inviter.DisplayName,
		User1Avatar:  inviter.AvatarURL,
		User2ID:      invitee.ID,
		User2Name:    invitee.DisplayName,
		User2Avatar:  invitee.AvatarURL,
		Status:       models.CoupleStatusActive,
		InvitationID: invitationID,
		CreatedAt:    now,
	}
	if err := tx.Couples.CreateCouple(couple); err != nil {
		return nil, err
	}
	return couple, nil
}

// linkFor builds the cache fields user should carry for couple.
func linkFor(couple *models.Couple, partner *models.User) *models.CoupleLink {
	return &models.CoupleLink{
		CoupleID:     couple.ID,
		PartnerID:    partner.ID,
		PartnerName:  partner.DisplayName,
		PartnerEmail: partner.Email,
	}
}

// ActiveCouple returns the user's active couple or nil.
func (s *CoupleService) ActiveCouple(ctx context.Context, userID string) (*models.Couple, error) {
	return s.store.WithContext(ctx).Couples.GetActiveCouple(userID)
}

// History lists every couple the user has been part of, newest first.
func (s *CoupleService) History(ctx context.Context, userID string) ([]models.Couple, error) {
	return s.store.WithContext(ctx).Couples.GetCoupleHistory(userID)
}

// lockCouple loads the couple under a row lock and checks the caller is a
// participant of an active couple.
func lockCouple(tx *repositories.Store, userID, coupleID string) (*models.Couple, error) {
	couple, err := tx.Couples.GetCoupleByID(coupleID, true)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeNotFound {
			return nil, errors.ErrNoActiveCouple
		}
		return nil, err
	}
	if !couple.HasParticipant(userID) {
		return nil, errors.ErrNotAuthorized
	}
	return couple, nil
}

func (s *CoupleService) UpdateSettings(ctx context.Context, userID, coupleID string, patch models.SettingsPatch) (*models.Couple, error) {
	if patch.IsEmpty() {
		return nil, errors.New(errors.ErrCodeValidation, "no settings to update")
	}

	changes := changeSet{}
	var updated *models.Couple
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		couple, err := lockCouple(tx, userID, coupleID)
		if err != nil {
			return err
		}
		if !couple.IsActive() {
			return errors.ErrNoActiveCouple
		}

		columns := patch.Apply(&couple.Settings)
		if err := tx.Couples.UpdateSettings(couple.ID, columns); err != nil {
			return err
		}

		updated = couple
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.add(models.CollectionCouples, updated.ID)
	changes.publish(ctx, s.bus)

	logger.Info("Couple settings updated", "couple_id", updated.ID, "user_id", userID)
	return updated, nil
}

// Disconnect ends the couple for both participants. Either one may do it
// alone, and doing it twice is not an error. Shared memories stay where
// they are.
func (s *CoupleService) Disconnect(ctx context.Context, userID, coupleID string) error {
	var changes changeSet
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		changes = changeSet{}

		couple, err := lockCouple(tx, userID, coupleID)
		if err != nil {
			return err
		}
		if !couple.IsActive() {
			return nil
		}

		now := s.clock.Now()
		ended, err := tx.Couples.MarkDisconnected(couple.ID, userID, now)
		if err != nil {
			return err
		}
		if !ended {
			return nil
		}
		changes.add(models.CollectionCouples, couple.ID)

		for _, id := range []string{couple.User1ID, couple.User2ID} {
			cleared, err := tx.Users.ClearCoupleLinkIf(id, couple.ID)
			if err != nil {
				return err
			}
			if cleared {
				changes.add(models.CollectionUsers, id)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(changes) > 0 {
		changes.publish(ctx, s.bus)
		logger.Info("Couple disconnected", "couple_id", coupleID, "user_id", userID)
	}
	return nil
}

// RepairUserCache rewrites the user's partner fields from the couples
// collection when they disagree, and reports whether it wrote anything.
func (s *CoupleService) RepairUserCache(ctx context.Context, userID string) (bool, error) {
	repaired := false
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		repaired = false

		users, err := tx.Users.LockUsers(userID)
		if err != nil {
			return err
		}
		user := users[userID]

		couple, err := tx.Couples.GetActiveCouple(userID)
		if err != nil {
			return err
		}

		var link *models.CoupleLink
		if couple != nil {
			partnerInfo, _ := couple.PartnerOf(userID)
			partner, err := tx.Users.GetUserByID(partnerInfo.ID)
			if err != nil {
				return err
			}
			link = linkFor(couple, partner)
		}

		if link.Matches(user) {
			return nil
		}
		if err := tx.Users.SetCoupleLink(userID, link); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if repaired {
		changes := changeSet{}
		changes.add(models.CollectionUsers, userID)
		changes.publish(ctx, s.bus)
	}
	return repaired, nil
}
