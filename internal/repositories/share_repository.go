package repositories

import (
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
)

type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// CreateShare inserts a grant; the unique (memory, partner) index turns a
// concurrent duplicate into ErrAlreadyShared.
func (r *ShareRepository) CreateShare(share *models.SharedMemory) error {
	if err := r.db.Create(share).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.ErrAlreadyShared
		}
		return dbError(err, "failed to share memory")
	}
	return nil
}

// FindShare returns the grant of memoryID to sharedWithID, or nil
func (r *ShareRepository) FindShare(memoryID, sharedWithID string) (*models.SharedMemory, error) {
	var share models.SharedMemory
	result := r.db.Where("memory_id = ? AND shared_with_id = ?", memoryID, sharedWithID).First(&share)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get share")
	}
	return &share, nil
}

// FindShareInCouple returns the grant of memoryID made under coupleID, or nil
func (r *ShareRepository) FindShareInCouple(memoryID, coupleID string) (*models.SharedMemory, error) {
	var share models.SharedMemory
	result := r.db.Where("memory_id = ? AND couple_id = ?", memoryID, coupleID).First(&share)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get share")
	}
	return &share, nil
}

// DeleteShare removes a grant owned by ownerID
func (r *ShareRepository) DeleteShare(id, ownerID string) error {
	result := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.SharedMemory{})
	if result.Error != nil {
		return dbError(result.Error, "failed to unshare memory")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "share not found")
	}
	return nil
}

// GetSharedWith lists grants made to a user, newest first
func (r *ShareRepository) GetSharedWith(userID string) ([]models.SharedMemory, error) {
	var shares []models.SharedMemory
	err := r.db.Where("shared_with_id = ?", userID).
		Order("shared_at DESC").
		Find(&shares).Error
	if err != nil {
		return nil, dbError(err, "failed to list shared memories")
	}
	return shares, nil
}

// GetSharedBy lists grants a user made, newest first
func (r *ShareRepository) GetSharedBy(ownerID string) ([]models.SharedMemory, error) {
	var shares []models.SharedMemory
	err := r.db.Where("owner_id = ?", ownerID).
		Order("shared_at DESC").
		Find(&shares).Error
	if err != nil {
		return nil, dbError(err, "failed to list shared memories")
	}
	return shares, nil
}
