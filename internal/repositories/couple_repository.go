package repositories

import (
	"time"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CoupleRepository struct {
	db *gorm.DB
}

func NewCoupleRepository(db *gorm.DB) *CoupleRepository {
	return &CoupleRepository{db: db}
}

// CreateCouple inserts a new couple
func (r *CoupleRepository) CreateCouple(couple *models.Couple) error {
	if err := r.db.Create(couple).Error; err != nil {
		return dbError(err, "failed to create couple")
	}
	return nil
}

// GetCoupleByID retrieves a couple, optionally taking a row lock
func (r *CoupleRepository) GetCoupleByID(id string, forUpdate bool) (*models.Couple, error) {
	query := r.db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var couple models.Couple
	result := query.Where("id = ?", id).First(&couple)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "couple not found")
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get couple")
	}

	return &couple, nil
}

// GetActiveCouple returns the active couple a user belongs to in either
// slot, or nil.
func (r *CoupleRepository) GetActiveCouple(userID string) (*models.Couple, error) {
	var couple models.Couple
	result := r.db.Where("(user1_id = ? OR user2_id = ?) AND status = ?",
		userID, userID, string(models.CoupleStatusActive)).
		First(&couple)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get active couple")
	}

	return &couple, nil
}

// CountActiveCouples counts active couples referencing a user in either slot.
func (r *CoupleRepository) CountActiveCouples(userID string) (int64, error) {
	var count int64
	result := r.db.Model(&models.Couple{}).
		Where("(user1_id = ? OR user2_id = ?) AND status = ?", userID, userID, string(models.CoupleStatusActive)).
		Count(&count)
	if result.Error != nil {
		return 0, dbError(result.Error, "failed to count couples")
	}
	return count, nil
}

// UpdateSettings writes the given settings columns on an active couple
func (r *CoupleRepository) UpdateSettings(id string, columns map[string]interface{}) error {
	result := r.db.Model(&models.Couple{}).
		Where("id = ? AND status = ?", id, string(models.CoupleStatusActive)).
		Updates(columns)
	if result.Error != nil {
		return dbError(result.Error, "failed to update couple settings")
	}
	if result.RowsAffected == 0 {
		return errors.ErrNoActiveCouple
	}
	return nil
}

// MarkDisconnected ends an active couple. It reports false when the couple
// was already disconnected.
func (r *CoupleRepository) MarkDisconnected(id, byUserID string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Couple{}).
		Where("id = ? AND status = ?", id, string(models.CoupleStatusActive)).
		Updates(map[string]interface{}{
			"status":          string(models.CoupleStatusDisconnected),
			"disconnected_at": at,
			"disconnected_by": byUserID,
		})
	if result.Error != nil {
		return false, dbError(result.Error, "failed to disconnect couple")
	}
	return result.RowsAffected > 0, nil
}

// GetCoupleHistory lists every couple a user was part of, newest first
func (r *CoupleRepository) GetCoupleHistory(userID string) ([]models.Couple, error) {
	var couples []models.Couple
	err := r.db.Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&couples).Error
	if err != nil {
		return nil, dbError(err, "failed to get couple history")
	}
	return couples, nil
}

// GetStatuses maps couple ids to their current status
func (r *CoupleRepository) GetStatuses(ids []string) (map[string]models.CoupleStatus, error) {
	statuses := make(map[string]models.CoupleStatus, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}

	var couples []models.Couple
	err := r.db.Select("id", "status").Where("id IN ?", ids).Find(&couples).Error
	if err != nil {
		return nil, dbError(err, "failed to get couple statuses")
	}
	for _, c := range couples {
		statuses[c.ID] = c.Status
	}
	return statuses, nil
}

// FindAllInBatches walks every couple in creation order
func (r *CoupleRepository) FindAllInBatches(batchSize int, fn func(batch []models.Couple) error) error {
	var batch []models.Couple
	result := r.db.Order("created_at").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return dbError(result.Error, "failed to scan couples")
	}
	return nil
}
