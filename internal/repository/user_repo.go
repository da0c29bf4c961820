package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mediline/telecare-api/internal/models"
)

// UserRepository resolves accounts and staff roles. The rendezvous layer uses
// it to find the on-duty doctor instead of relying on a fixed identity.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FirstByRole(ctx context.Context, role string) (models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FirstByRole(ctx context.Context, role string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	var existing models.User
	err := r.db.WithContext(ctx).Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		user.ID = existing.ID
		return r.db.WithContext(ctx).Save(user).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(user).Error
}
