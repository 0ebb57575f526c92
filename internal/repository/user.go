// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"sprout/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, patch *models.User, fields ...string) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	SetResetToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id uint) error
	SetVerified(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundMessage("User not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByResetTokenHash returns the user holding an unexpired reset token with
// the given digest, or (nil, nil).
func (r *userRepository) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	if hash == "" {
		return nil, nil
	}
	var user models.User
	err := r.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_expires_at > ?", hash, now).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateFields writes only the named columns of patch to the user id.
func (r *userRepository) UpdateFields(ctx context.Context, id uint, patch *models.User, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{ID: id}).Select(fields).Updates(patch)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("User not found")
	}
	return nil
}

// UpdatePassword stores a new hash and invalidates any pending reset token.
func (r *userRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{ID: id}).Updates(map[string]any{
		"password":         passwordHash,
		"reset_token_hash": "",
		"reset_expires_at": nil,
	})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundMessage("User not found")
	}
	return nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{ID: id}).Updates(map[string]any{
		"reset_token_hash": tokenHash,
		"reset_expires_at": expiresAt,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) ClearResetToken(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.User{ID: id}).Updates(map[string]any{
		"reset_token_hash": "",
		"reset_expires_at": nil,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) SetVerified(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.User{ID: id}).Update("is_verified", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
