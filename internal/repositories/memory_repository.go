package repositories

import (
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
)

type MemoryRepository struct {
	db *gorm.DB
}

func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// CreateMemory inserts a private memory
func (r *MemoryRepository) CreateMemory(memory *models.Memory) error {
	if err := r.db.Create(memory).Error; err != nil {
		return dbError(err, "failed to create memory")
	}
	return nil
}

// GetMemoryByID retrieves a memory regardless of owner; callers check ownership
func (r *MemoryRepository) GetMemoryByID(id string) (*models.Memory, error) {
	var memory models.Memory
	result := r.db.Where("id = ?", id).First(&memory)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "memory not found")
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get memory")
	}
	return &memory, nil
}
