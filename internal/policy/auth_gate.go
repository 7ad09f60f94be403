package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"gorm.io/gorm"
)

// AuthGate is the application's authorization checkpoint: role profiles
// resolved through a TTL cache, plus per-resource policies.
type AuthGate struct {
	Gate          *gate.Gate[string]
	CacheResolver *gate.CachedResolver[string]
}

// NewAuthGate builds the gate with the CRM policies registered.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[string](NewRoleResolver(db), cacheTTL)
	ag := &AuthGate{Gate: gate.NewGate[string](cached), CacheResolver: cached}

	// A user edits their own record; admins edit anyone's.
	ag.RegisterPolicy(ResourceUser, NewAdminBypassPolicy(NewOwnershipPolicy(), ag.IsAdmin))
	return ag
}

func (ag *AuthGate) RegisterPolicy(resourceType string, p gate.Policy[string]) {
	ag.Gate.Register(resourceType, p)
}

// Authorize checks the user in ctx. Denials wrap gate.ErrUnauthorized.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanProfile checks the role permission only, without a resource.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	return ag.Authorize(ctx, action, resourceType, nil) == nil
}

// IsAdmin reports whether userID holds the superadmin permission.
func (ag *AuthGate) IsAdmin(ctx context.Context, userID string) bool {
	p, err := ag.CacheResolver.Resolve(ctx, userID)
	return err == nil && p != nil && p.HasPermission(gate.PermissionSuperAdmin)
}

// InvalidateUser drops the cached profile of userID. Call it after a role change.
func (ag *AuthGate) InvalidateUser(userID string) {
	ag.CacheResolver.Invalidate(userID)
}

func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// RequirePermission rejects requests whose user lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
				return
			}
			if !ag.CanProfile(r.Context(), action, resourceType) {
				httpx.JSONError(w, http.StatusForbidden, "Not enough permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets superadmins through.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
				return
			}
			if !ag.IsAdmin(r.Context(), userID) {
				httpx.JSONError(w, http.StatusForbidden, "Not enough permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
