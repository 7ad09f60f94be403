package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-crm/internal/models"
	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PasswordHasher hashes the seeded admin password.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// SeedAdmin creates the default administrator when no user holds email.
// It reports whether a user was created.
func SeedAdmin(ctx context.Context, db *gorm.DB, h PasswordHasher, email, password string) (bool, error) {
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}
	hash, err := h.Hash(password)
	if err != nil {
		return false, err
	}
	admin := models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         models.RoleAdmin,
		Status:       models.UserActive,
		IsVerified:   true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
