package rbac

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/search"
)

const testPolicy = `
roles:
  - name: hr
    parent: viewer
    permissions:
      - search:empSearch:export
      - extension:Employee:write
bindings:
  - user: alice
    space: acme
    roles: [hr]
  - user: bob
    roles: [viewer]
  - user: root
    roles: [admin]
`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestChecker(t *testing.T, ttl time.Duration) *PolicyChecker {
	t.Helper()
	policy, err := ParsePolicy([]byte(testPolicy))
	require.NoError(t, err)
	return NewPolicyChecker(policy, ttl, quietLogger())
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{in: "search:export", want: Permission{Resource: ResourceSearch, Action: ActionExport}},
		{in: "search:empSearch:table", want: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionTable}},
		{in: "*:*", want: Permission{Resource: ResourceAny, Action: ActionAny}},
		{in: "search", wantErr: true},
		{in: "search::table", wantErr: true},
		{in: "a:b:c:d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermission_Grants(t *testing.T) {
	req := Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionExport}
	tests := []struct {
		granted string
		want    bool
	}{
		{"search:empSearch:export", true},
		{"search:export", true},
		{"search:*:*", true},
		{"*:*", true},
		{"search:empSearch:table", false},
		{"search:custSearch:export", false},
		{"extension:*:*", false},
	}
	for _, tt := range tests {
		t.Run(tt.granted, func(t *testing.T) {
			p, err := ParsePermission(tt.granted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Grants(req))
		})
	}
}

func TestNewPolicy_Errors(t *testing.T) {
	_, err := NewPolicy([]Role{{Name: RoleViewer}}, nil)
	assert.Error(t, err, "built-in names are reserved")

	_, err = NewPolicy([]Role{{Name: "a", Parent: "missing"}}, nil)
	assert.Error(t, err)

	_, err = NewPolicy([]Role{{Name: "a", Parent: "b"}, {Name: "b", Parent: "a"}}, nil)
	assert.ErrorContains(t, err, "cycle")

	_, err = NewPolicy(nil, []Binding{{User: "x", Roles: []string{"ghost"}}})
	assert.ErrorContains(t, err, "unknown role")

	_, err = NewPolicy(nil, []Binding{{Roles: []string{RoleViewer}}})
	assert.Error(t, err)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPolicy), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	hr, ok := policy.Role("hr")
	require.True(t, ok)
	assert.Equal(t, RoleViewer, hr.Parent)
	assert.Len(t, hr.Permissions, 2)
	assert.Len(t, policy.Roles(), len(BuiltInRoles())+1)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = ParsePolicy([]byte("roles:\n  - name: x\n    permissions: [bad]\n"))
	assert.Error(t, err)
}

func TestPolicyChecker_CheckPermission(t *testing.T) {
	checker := newTestChecker(t, 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		check PermissionCheck
		want  bool
	}{
		{
			name:  "inherited viewer permission",
			check: PermissionCheck{UserID: "alice", Space: "acme", Permission: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionTable}},
			want:  true,
		},
		{
			name:  "own role permission",
			check: PermissionCheck{UserID: "alice", Space: "acme", Permission: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionExport}},
			want:  true,
		},
		{
			name:  "binding limited to space",
			check: PermissionCheck{UserID: "alice", Space: "globex", Permission: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionTable}},
			want:  false,
		},
		{
			name:  "export needs exporter",
			check: PermissionCheck{UserID: "bob", Space: "acme", Permission: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionExport}},
			want:  false,
		},
		{
			name:  "admin wildcard",
			check: PermissionCheck{UserID: "root", Permission: Permission{Resource: ResourceExtension, Target: "Employee", Action: ActionWrite}},
			want:  true,
		},
		{
			name:  "unbound user",
			check: PermissionCheck{UserID: "mallory", Permission: Permission{Resource: ResourceSearch, Action: ActionSearch}},
			want:  false,
		},
		{
			name:  "anonymous",
			check: PermissionCheck{Permission: Permission{Resource: ResourceSearch, Action: ActionSearch}},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := checker.CheckPermission(ctx, tt.check)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Allowed, result.Reason)
		})
	}
}

func TestPolicyChecker_MatchedRoles(t *testing.T) {
	checker := newTestChecker(t, 0)
	result, err := checker.CheckPermission(context.Background(), PermissionCheck{
		UserID:     "alice",
		Space:      "acme",
		Permission: Permission{Resource: ResourceSettings, Action: ActionWrite},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{RoleViewer}, result.MatchedRoles)

	names := []string{}
	for _, role := range checker.UserRoles("alice", "acme") {
		names = append(names, role.Name)
	}
	assert.Equal(t, []string{"hr", RoleViewer}, names)
	assert.Contains(t, checker.EffectivePermissions("alice", "acme"),
		Permission{Resource: ResourceExtension, Target: "Employee", Action: ActionWrite})
}

func TestPolicyChecker_CacheAndSetPolicy(t *testing.T) {
	checker := newTestChecker(t, time.Minute)
	ctx := context.Background()
	check := PermissionCheck{UserID: "bob", Permission: Permission{Resource: ResourceSearch, Target: "empSearch", Action: ActionExport}}

	result, err := checker.CheckPermission(ctx, check)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = checker.CheckPermission(ctx, check)
	require.NoError(t, err)
	assert.Equal(t, "cached result", result.Reason)

	policy, err := NewPolicy(nil, []Binding{{User: "bob", Roles: []string{RoleExporter}}})
	require.NoError(t, err)
	checker.SetPolicy(policy)

	result, err = checker.CheckPermission(ctx, check)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestPolicyChecker_IsAuthorized(t *testing.T) {
	checker := newTestChecker(t, 0)
	ctx := context.Background()

	ok, err := checker.IsAuthorized(ctx, search.AuthRequest{Query: "empSearch", Method: search.MethodExport, UserID: "alice", Space: "acme"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.IsAuthorized(ctx, search.AuthRequest{Query: "empSearch", Method: search.MethodExport, UserID: "bob", Space: "acme"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AllowAll{}.IsAuthorized(ctx, search.AuthRequest{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionMiddleware(t *testing.T) {
	checker := newTestChecker(t, 0)
	pm := NewPermissionMiddleware(checker)

	router := mux.NewRouter()
	router.Handle("/extensions/{point}/fields",
		pm.RequirePermission(ResourceExtension, ActionWrite, "point")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

	tests := []struct {
		name   string
		user   string
		space  string
		path   string
		status int
	}{
		{name: "no user", path: "/extensions/Employee/fields", status: http.StatusUnauthorized},
		{name: "granted", user: "alice", space: "acme", path: "/extensions/Employee/fields", status: http.StatusNoContent},
		{name: "other point", user: "alice", space: "acme", path: "/extensions/Customer/fields", status: http.StatusForbidden},
		{name: "viewer", user: "bob", space: "acme", path: "/extensions/Employee/fields", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			ctx := contextkeys.WithSpace(contextkeys.WithUserID(req.Context(), tt.user), tt.space)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req.WithContext(ctx))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
