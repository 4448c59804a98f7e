package extension

import (
	"context"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

// OwnerResolver determines which extension scope applies to the caller for
// an extension point. ok=false means the caller has no scope and the
// global extension applies.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, point ExtensionPoint) (owner Owner, ok bool)
}

// OwnerResolverFunc adapts a function to OwnerResolver
type OwnerResolverFunc func(ctx context.Context, point ExtensionPoint) (Owner, bool)

// ResolveOwner calls f(ctx, point)
func (f OwnerResolverFunc) ResolveOwner(ctx context.Context, point ExtensionPoint) (Owner, bool) {
	return f(ctx, point)
}

// ContextOwnerResolver reads the owner set by the identity middleware
type ContextOwnerResolver struct{}

// ResolveOwner implements OwnerResolver
func (ContextOwnerResolver) ResolveOwner(ctx context.Context, point ExtensionPoint) (Owner, bool) {
	owner, ok := contextkeys.GetOwner(ctx)
	if !ok {
		return Owner{}, false
	}
	return Owner{Type: owner.Type, ID: owner.ID}, true
}
