package repositories

import (
	"time"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// CreateInvitation inserts a new invitation
func (r *InvitationRepository) CreateInvitation(inv *models.CoupleInvitation) error {
	if err := r.db.Create(inv).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDuplicatePending
		}
		return dbError(err, "failed to create invitation")
	}
	return nil
}

// GetInvitationByID retrieves an invitation, optionally taking a row lock
func (r *InvitationRepository) GetInvitationByID(id string, forUpdate bool) (*models.CoupleInvitation, error) {
	query := r.db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var inv models.CoupleInvitation
	result := query.Where("id = ?", id).First(&inv)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.ErrInvitationNotFound
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get invitation")
	}

	return &inv, nil
}

// FindPendingBetween returns the pending invitation between two users in
// either direction, or nil.
func (r *InvitationRepository) FindPendingBetween(userA, userB string) (*models.CoupleInvitation, error) {
	var inv models.CoupleInvitation
	result := r.db.Where(
		"((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status = ?",
		userA, userB, userB, userA, string(models.InvitationStatusPending),
	).First(&inv)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to check pending invitations")
	}

	return &inv, nil
}

// Transition moves an invitation from one status to another. It reports
// false when the invitation was no longer in the from status.
func (r *InvitationRepository) Transition(id string, from, to models.InvitationStatus, at time.Time) (bool, error) {
	result := r.db.Model(&models.CoupleInvitation{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":       string(to),
			"responded_at": at,
		})
	if result.Error != nil {
		return false, dbError(result.Error, "failed to update invitation")
	}
	return result.RowsAffected > 0, nil
}

// CancelPendingInvolving cancels every pending invitation sent or received
// by any of userIDs, except exceptID. It returns the cancelled ids.
func (r *InvitationRepository) CancelPendingInvolving(userIDs []string, exceptID string, at time.Time) ([]string, error) {
	var ids []string
	result := r.db.Model(&models.CoupleInvitation{}).
		Where("(sender_id IN ? OR receiver_id IN ?) AND status = ? AND id <> ?",
			userIDs, userIDs, string(models.InvitationStatusPending), exceptID).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to find sibling invitations")
	}

	if err := r.setStatus(ids, models.InvitationStatusCancelled, at); err != nil {
		return nil, err
	}
	return ids, nil
}

// ExpireOverdue flips pending invitations past their expiry to expired and
// returns their ids.
func (r *InvitationRepository) ExpireOverdue(now time.Time) ([]string, error) {
	var ids []string
	result := r.db.Model(&models.CoupleInvitation{}).
		Where("status = ? AND expires_at < ?", string(models.InvitationStatusPending), now).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to find overdue invitations")
	}

	if err := r.setStatus(ids, models.InvitationStatusExpired, now); err != nil {
		return nil, err
	}
	return ids, nil
}

// ExpireOverdueBetween is ExpireOverdue restricted to one pair of users.
func (r *InvitationRepository) ExpireOverdueBetween(userA, userB string, now time.Time) ([]string, error) {
	var ids []string
	result := r.db.Model(&models.CoupleInvitation{}).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status = ? AND expires_at < ?",
			userA, userB, userB, userA, string(models.InvitationStatusPending), now).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to find overdue invitations")
	}

	if err := r.setStatus(ids, models.InvitationStatusExpired, now); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *InvitationRepository) setStatus(ids []string, status models.InvitationStatus, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.Model(&models.CoupleInvitation{}).
		Where("id IN ? AND status = ?", ids, string(models.InvitationStatusPending)).
		Updates(map[string]interface{}{
			"status":       string(status),
			"responded_at": at,
		})
	if result.Error != nil {
		return dbError(result.Error, "failed to update invitations")
	}
	return nil
}

// GetReceivedPending lists pending invitations addressed to a user, newest first
func (r *InvitationRepository) GetReceivedPending(userID string) ([]models.CoupleInvitation, error) {
	return r.listPending("receiver_id", userID)
}

// GetSentPending lists pending invitations a user sent, newest first
func (r *InvitationRepository) GetSentPending(userID string) ([]models.CoupleInvitation, error) {
	return r.listPending("sender_id", userID)
}

func (r *InvitationRepository) listPending(column, userID string) ([]models.CoupleInvitation, error) {
	var invitations []models.CoupleInvitation
	err := r.db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: userID}).
		Where("status = ?", string(models.InvitationStatusPending)).
		Order("created_at DESC").
		Order("id").
		Find(&invitations).Error
	if err != nil {
		return nil, dbError(err, "failed to list invitations")
	}
	return invitations, nil
}
