package policy

import (
	"context"

	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
)

// OwnershipPolicy allows a user to act on resources they own.
// Resources that are not models.Ownable are denied.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

func (p *OwnershipPolicy) Can(_ context.Context, userID string, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(models.Ownable)
	if !ok {
		return false
	}
	return ownable.GetOwnerID() == userID
}

// AdminBypassPolicy lets admins through and defers to inner for everyone else.
type AdminBypassPolicy struct {
	inner   gate.Policy[string]
	isAdmin func(ctx context.Context, userID string) bool
}

func NewAdminBypassPolicy(inner gate.Policy[string], isAdmin func(ctx context.Context, userID string) bool) *AdminBypassPolicy {
	return &AdminBypassPolicy{inner: inner, isAdmin: isAdmin}
}

func (p *AdminBypassPolicy) Can(ctx context.Context, userID string, action gate.Action, resource any) bool {
	if p.isAdmin(ctx, userID) {
		return true
	}
	return p.inner.Can(ctx, userID, action, resource)
}
