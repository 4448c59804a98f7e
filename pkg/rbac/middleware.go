package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/httputil"
)

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	checker Checker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker Checker) *PermissionMiddleware {
	return &PermissionMiddleware{checker: checker}
}

// RequirePermission creates middleware that requires an action on a
// resource. targetVar names the route variable holding the target (for
// example "point" or "query"); "" checks the resource as a whole.
func (pm *PermissionMiddleware) RequirePermission(resource Resource, action Action, targetVar string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := contextkeys.GetUserID(ctx)
			if userID == "" {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			check := PermissionCheck{
				UserID:     userID,
				Space:      contextkeys.GetSpace(ctx),
				Permission: Permission{Resource: resource, Action: action},
			}
			if targetVar != "" {
				check.Permission.Target = mux.Vars(r)[targetVar]
			}

			result, err := pm.checker.CheckPermission(ctx, check)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "permission check failed")
				return
			}
			if !result.Allowed {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
