package repositories

import (
	"sort"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeValidation, "email already registered")
		}
		return dbError(err, "failed to create user")
	}
	return nil
}

// UpdateProfile refreshes the identity fields that come from the identity provider.
func (r *UserRepository) UpdateProfile(userID, displayName, avatarURL string) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"avatar_url":   avatarURL,
		})
	if result.Error != nil {
		return dbError(result.Error, "failed to update profile")
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id string) (*models.User, error) {
	var user models.User
	result := r.db.Where("id = ?", id).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get user")
	}

	return &user, nil
}

// GetUserByEmail resolves an email to a user
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	result := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to get user")
	}

	return &user, nil
}

// LockUsers takes row locks on the given users in id order, so concurrent
// transactions touching the same pair always queue instead of deadlocking.
// Every id must exist.
func (r *UserRepository) LockUsers(ids ...string) (map[string]*models.User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var users []models.User
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&users)
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to lock users")
	}

	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, id := range sorted {
		if _, ok := byID[id]; !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "user not found")
		}
	}
	return byID, nil
}

// SetCoupleLink writes the denormalized partner fields; a nil link clears them.
func (r *UserRepository) SetCoupleLink(userID string, link *models.CoupleLink) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(link.Columns())
	if result.Error != nil {
		return dbError(result.Error, "failed to update couple cache")
	}
	return nil
}

// ClearCoupleLinkIf clears the partner fields only while they still point at coupleID.
func (r *UserRepository) ClearCoupleLinkIf(userID, coupleID string) (bool, error) {
	var link *models.CoupleLink
	result := r.db.Model(&models.User{}).
		Where("id = ? AND couple_id = ?", userID, coupleID).
		Updates(link.Columns())
	if result.Error != nil {
		return false, dbError(result.Error, "failed to clear couple cache")
	}
	return result.RowsAffected > 0, nil
}
