package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
	"gorm.io/gorm"
)

// RoleResolver resolves a user id to the profile of the user's role.
// Unknown users resolve to no profile.
type RoleResolver struct {
	DB *gorm.DB
}

func NewRoleResolver(db *gorm.DB) *RoleResolver {
	return &RoleResolver{DB: db}
}

func (r *RoleResolver) Resolve(ctx context.Context, userID string) (gate.Profile, error) {
	var u models.User
	err := r.DB.WithContext(ctx).Select("id", "role").First(&u, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ProfileFor(u.Role), nil
}
