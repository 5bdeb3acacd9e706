package services

import (
	"context"

	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/internal/security"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
)

type UserService struct {
	store *repositories.Store
	bus   realtime.Bus
}

func NewUserService(store *repositories.Store, bus realtime.Bus) *UserService {
	return &UserService{
		store: store,
		bus:   bus,
	}
}

// Profile is the identity a verified token vouches for.
type Profile struct {
	UserID      string `validate:"required,max=36"`
	Email       string `validate:"required,email,max=255"`
	DisplayName string `validate:"required,max=255"`
	AvatarURL   string `validate:"omitempty,url,max=500"`
}

// EnsureProfile creates the user on first sight and keeps name and avatar in
// step with the identity provider afterwards.
func (s *UserService) EnsureProfile(ctx context.Context, p Profile) (*models.User, error) {
	p.Email = models.NormalizeEmail(p.Email)
	p.DisplayName = security.SanitizeLine(p.DisplayName)
	if p.DisplayName == "" {
		p.DisplayName = p.Email
	}
	if err := security.ValidateStruct(p); err != nil {
		return nil, err
	}

	store := s.store.WithContext(ctx)
	user, err := store.Users.GetUserByID(p.UserID)
	if err != nil && errors.CodeOf(err) != errors.ErrCodeNotFound {
		return nil, err
	}

	changes := changeSet{}
	switch {
	case user == nil:
		user = &models.User{
			ID:          p.UserID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		}
		if err := store.Users.CreateUser(user); err != nil {
			return nil, err
		}
		logger.Info("User registered", "user_id", user.ID)
		changes.add(models.CollectionUsers, user.ID)

	case user.DisplayName != p.DisplayName || user.AvatarURL != p.AvatarURL:
		if err := store.Users.UpdateProfile(user.ID, p.DisplayName, p.AvatarURL); err != nil {
			return nil, err
		}
		user.DisplayName = p.DisplayName
		user.AvatarURL = p.AvatarURL
		changes.add(models.CollectionUsers, user.ID)
	}

	changes.publish(ctx, s.bus)
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.store.WithContext(ctx).Users.GetUserByID(userID)
}
