package gate

import (
	"context"
	"sort"
	"sync"
)

// Profile is a named set of permissions, typically one per role.
type Profile interface {
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver resolves a user to their profile.
// A nil profile with a nil error means the user has none.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is an in-memory profile.
type StaticProfile struct {
	name        string
	permissions map[Permission]bool
}

// NewStaticProfile creates a profile with the given permissions.
func NewStaticProfile(name string, permissions ...Permission) *StaticProfile {
	p := &StaticProfile{name: name, permissions: make(map[Permission]bool, len(permissions))}
	for _, perm := range permissions {
		p.permissions[perm] = true
	}
	return p
}

func (p *StaticProfile) Name() string { return p.name }

// Permissions returns all permissions in this profile, sorted.
func (p *StaticProfile) Permissions() []Permission {
	perms := make([]Permission, 0, len(p.permissions))
	for perm := range p.permissions {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// HasPermission checks if the profile grants the requested permission.
func (p *StaticProfile) HasPermission(requested Permission) bool {
	if p.permissions[requested] {
		return true
	}
	for perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// StaticResolver is an in-memory resolver keyed by user.
type StaticResolver[U comparable] struct {
	mu       sync.RWMutex
	profiles map[U]Profile
}

func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{profiles: make(map[U]Profile)}
}

// Set assigns a profile to a user.
func (r *StaticResolver[U]) Set(user U, profile Profile) {
	r.mu.Lock()
	r.profiles[user] = profile
	r.mu.Unlock()
}

func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[user], nil
}
