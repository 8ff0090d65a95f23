package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/projectaudit/engine/internal/models"
	appErr "github.com/projectaudit/engine/pkg/errors"
)

type UserRepository interface {
	BaseRepository[models.User]
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

type userRepository struct {
	BaseRepository[models.User]
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db, "user"), db: db}
}

// GetByEmail matches on the trimmed, lowercased address.
func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("user")
		}
		return appErr.Internal(err, "get user by email")
	}
	return nil
}

func (r *userRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var out []models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("name ASC").Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list users by role")
	}
	return out, nil
}
