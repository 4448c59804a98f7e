package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Caller identity headers
const (
	HeaderUserID    = "X-User-ID"
	HeaderSpaceID   = "X-Space-ID"
	HeaderOwnerType = "X-Owner-Type"
	HeaderOwnerID   = "X-Owner-ID"

	// HeaderAttributePrefix marks request attributes: X-Attr-Department: hr
	// becomes attribute "department"
	HeaderAttributePrefix = "X-Attr-"
)

// IdentityMiddleware copies the caller identity headers into the request
// context: user, space, extension owner and the attribute map read by
// context-sourced search conditions. It also stores a request-scoped log
// entry. Run it after httputil.RequestIDMiddleware.
func IdentityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			space := strings.TrimSpace(r.Header.Get(HeaderSpaceID))
			ownerType := strings.TrimSpace(r.Header.Get(HeaderOwnerType))
			ownerID := strings.TrimSpace(r.Header.Get(HeaderOwnerID))

			attrs := map[string]interface{}{
				"user":  map[string]interface{}{"id": userID},
				"space": space,
			}
			if userID != "" {
				ctx = contextkeys.WithUserID(ctx, userID)
			}
			if space != "" {
				ctx = contextkeys.WithSpace(ctx, space)
			}
			if ownerType != "" {
				ctx = contextkeys.WithOwner(ctx, ownerType, ownerID)
				attrs["owner"] = map[string]interface{}{"type": ownerType, "id": ownerID}
			}
			for name, values := range r.Header {
				if len(values) == 0 || !strings.HasPrefix(name, HeaderAttributePrefix) {
					continue
				}
				key := strings.ToLower(strings.TrimPrefix(name, HeaderAttributePrefix))
				if key != "" {
					attrs[key] = values[0]
				}
			}
			ctx = contextkeys.WithAttributes(ctx, attrs)

			entry := observability.FromContext(ctx, logger)
			ctx = observability.WithLogger(ctx, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
