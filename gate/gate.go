// Package gate provides profile based authorization with optional
// per-resource policies.
//
// A Gate first checks that the user's profile grants "resource:action",
// then, when a concrete resource is supplied and a Policy is registered
// for its type, asks the policy about that specific instance.
package gate

import (
	"context"
	"fmt"
)

// Policy decides on a concrete resource instance after the profile check
// has passed.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate is the central authorization checkpoint.
// U is the user/subject type; its zero value is treated as anonymous.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

func NewGate[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register adds a resource policy. Overwrites any existing one for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns nil when user may perform action on resourceType.
// resource may be nil for list/create style checks.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	profile, err := g.profile(ctx, user)
	if err != nil {
		return err
	}
	perm := NewPermission(resourceType, action)
	if !profile.HasPermission(perm) {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, profile.Name(), perm)
	}
	if resource != nil {
		if policy, ok := g.policies[resourceType]; ok && !policy.Can(ctx, user, action, resource) {
			return fmt.Errorf("%w: %s denied by policy", ErrUnauthorized, perm)
		}
	}
	return nil
}

// Can is Authorize as a bool.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// Profile returns the resolved profile of user.
func (g *Gate[U]) Profile(ctx context.Context, user U) (Profile, error) {
	return g.profile(ctx, user)
}

func (g *Gate[U]) profile(ctx context.Context, user U) (Profile, error) {
	var zero U
	if user == zero {
		return nil, ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrNoProfile)
	}
	return profile, nil
}
