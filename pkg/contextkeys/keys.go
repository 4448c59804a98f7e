// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/adminkit/pkg/contextkeys"
//	ctx = contextkeys.WithSpace(ctx, "acme")
//	space := contextkeys.GetSpace(ctx)
package contextkeys

import (
	"context"
	"strings"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: api.IdentityMiddleware
	// Used by: Logger, search tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the calling user's ID
	// Set by: api.IdentityMiddleware (X-User-ID)
	// Used by: Authorization, per-user search settings
	// Type: string
	UserIDKey Key = "user_id"

	// SpaceKey contains the caller's tenant partition
	// Set by: api.IdentityMiddleware (X-Space-ID)
	// Used by: search tenant isolation
	// Type: string
	SpaceKey Key = "space"

	// OwnerKey contains the extension owner of the caller
	// Set by: api.IdentityMiddleware (X-Owner-Type / X-Owner-ID)
	// Used by: extension.ContextOwnerResolver
	// Type: Owner
	OwnerKey Key = "extension_owner"

	// AttributesKey contains per-request attributes read by context-sourced search conditions
	// Set by: api.IdentityMiddleware, callers of the search engine
	// Used by: search predicate building
	// Type: map[string]interface{}
	AttributesKey Key = "attributes"

	// LoggerKey contains *logrus.Entry
	// Set by: api.IdentityMiddleware
	// Used by: observability.FromContext
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// Owner identifies the scope an extension belongs to.
type Owner struct {
	Type string
	ID   string
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithSpace adds the tenant partition to the context
func WithSpace(ctx context.Context, space string) context.Context {
	return context.WithValue(ctx, SpaceKey, space)
}

// WithOwner adds the extension owner to the context
func WithOwner(ctx context.Context, ownerType, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerKey, Owner{Type: ownerType, ID: ownerID})
}

// WithAttributes adds the request attribute map to the context
func WithAttributes(ctx context.Context, attrs map[string]interface{}) context.Context {
	return context.WithValue(ctx, AttributesKey, attrs)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetSpace retrieves the tenant partition from context
func GetSpace(ctx context.Context) string {
	if space, ok := ctx.Value(SpaceKey).(string); ok {
		return space
	}
	return ""
}

// GetOwner retrieves the extension owner from context
func GetOwner(ctx context.Context) (Owner, bool) {
	owner, ok := ctx.Value(OwnerKey).(Owner)
	if !ok || owner.Type == "" {
		return Owner{}, false
	}
	return owner, true
}

// GetAttributes retrieves the request attribute map from context
func GetAttributes(ctx context.Context) map[string]interface{} {
	if attrs, ok := ctx.Value(AttributesKey).(map[string]interface{}); ok {
		return attrs
	}
	return nil
}

// LookupAttribute resolves a dotted path such as "user.department" against
// the request attribute map. Nested maps are traversed one segment at a time.
func LookupAttribute(ctx context.Context, path string) (interface{}, bool) {
	var cur interface{} = GetAttributes(ctx)
	if cur == nil {
		return nil, false
	}
	for _, segment := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
