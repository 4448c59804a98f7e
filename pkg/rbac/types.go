package rbac

import (
	"fmt"
	"strings"
	"time"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceSearch    Resource = "search"
	ResourceExtension Resource = "extension"
	ResourceSettings  Resource = "settings"
	ResourceAny       Resource = Wildcard
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionSearch Action = "search"
	ActionTable  Action = "table"
	ActionExport Action = "export"
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionAny    Action = Wildcard
)

// Wildcard matches any segment of a permission
const Wildcard = "*"

// Permission grants an action on a resource. Target narrows it to one
// named query or extension point; "" and "*" mean every target.
type Permission struct {
	Resource Resource `json:"resource" yaml:"resource"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
	Action   Action   `json:"action" yaml:"action"`
}

// String returns the resource:target:action form of the permission
func (p Permission) String() string {
	target := p.Target
	if target == "" {
		target = Wildcard
	}
	return string(p.Resource) + ":" + target + ":" + string(p.Action)
}

// Grants reports whether p covers the requested permission
func (p Permission) Grants(req Permission) bool {
	return segmentMatches(string(p.Resource), string(req.Resource)) &&
		segmentMatches(p.Target, req.Target) &&
		segmentMatches(string(p.Action), string(req.Action))
}

func segmentMatches(granted, requested string) bool {
	return granted == "" || granted == Wildcard || granted == requested
}

// ParsePermission parses "resource:action" or "resource:target:action"
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for _, part := range parts {
		if part == "" {
			return Permission{}, fmt.Errorf("invalid permission %q", s)
		}
	}
	switch len(parts) {
	case 2:
		return Permission{Resource: Resource(parts[0]), Action: Action(parts[1])}, nil
	case 3:
		return Permission{Resource: Resource(parts[0]), Target: parts[1], Action: Action(parts[2])}, nil
	}
	return Permission{}, fmt.Errorf("invalid permission %q", s)
}

// Role represents a role with a set of permissions
type Role struct {
	Name        string       `json:"name" yaml:"name"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Description string       `json:"description" yaml:"description"`
	Permissions []Permission `json:"permissions" yaml:"-"`
	// Parent is inherited: a role grants everything its parent grants
	Parent    string `json:"parent,omitempty" yaml:"parent,omitempty"`
	IsBuiltIn bool   `json:"is_built_in" yaml:"-"`
}

// Built-in role names
const (
	RoleAdmin    = "admin"
	RoleEditor   = "editor"
	RoleViewer   = "viewer"
	RoleExporter = "exporter"
)

// Binding assigns roles to a user. User "*" binds every caller; an empty
// Space applies the binding in every space.
type Binding struct {
	User  string   `json:"user" yaml:"user"`
	Space string   `json:"space,omitempty" yaml:"space,omitempty"`
	Roles []string `json:"roles" yaml:"roles"`
}

// Applies reports whether the binding covers the user in the space
func (b Binding) Applies(userID, space string) bool {
	if b.User != Wildcard && b.User != userID {
		return false
	}
	return b.Space == "" || b.Space == Wildcard || b.Space == space
}

// PermissionCheck represents a permission check request
type PermissionCheck struct {
	UserID     string     `json:"user_id"`
	Space      string     `json:"space,omitempty"`
	Permission Permission `json:"permission"`
}

func (c PermissionCheck) cacheKey() string {
	return c.UserID + "|" + c.Space + "|" + c.Permission.String()
}

// PermissionCheckResult represents the result of a permission check
type PermissionCheckResult struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	MatchedRoles []string  `json:"matched_roles,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// BuiltInRoles returns all built-in role definitions
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleViewer,
			DisplayName: "Viewer",
			Description: "Can run every search and read extension metadata",
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceSearch, Action: ActionSearch},
				{Resource: ResourceSearch, Action: ActionTable},
				{Resource: ResourceExtension, Action: ActionRead},
				{Resource: ResourceSettings, Action: ActionRead},
				{Resource: ResourceSettings, Action: ActionWrite},
			},
		},
		{
			Name:        RoleExporter,
			DisplayName: "Exporter",
			Description: "Viewer that can also export search results",
			Parent:      RoleViewer,
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceSearch, Action: ActionExport},
			},
		},
		{
			Name:        RoleEditor,
			DisplayName: "Editor",
			Description: "Exporter that can also define extension fields",
			Parent:      RoleExporter,
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceExtension, Action: ActionWrite},
			},
		},
		{
			Name:        RoleAdmin,
			DisplayName: "Admin",
			Description: "Full access",
			IsBuiltIn:   true,
			Permissions: []Permission{
				{Resource: ResourceAny, Action: ActionAny},
			},
		},
	}
}
