package rbac

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Policy is the set of roles and bindings the checker evaluates
type Policy struct {
	roles    map[string]Role
	bindings []Binding
}

// policyFile is the YAML layout of a policy document:
//
//	roles:
//	  - name: hr
//	    parent: viewer
//	    permissions: ["search:empSearch:export", "extension:Employee:write"]
//	bindings:
//	  - user: alice
//	    space: acme
//	    roles: [hr]
type policyFile struct {
	Roles []struct {
		Name        string   `yaml:"name"`
		DisplayName string   `yaml:"display_name"`
		Description string   `yaml:"description"`
		Parent      string   `yaml:"parent"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	Bindings []Binding `yaml:"bindings"`
}

// NewPolicy builds a policy from the built-in roles plus custom roles and
// bindings. Unknown parents, inheritance cycles and bindings naming
// unknown roles are rejected.
func NewPolicy(custom []Role, bindings []Binding) (*Policy, error) {
	p := &Policy{roles: make(map[string]Role)}
	for _, role := range BuiltInRoles() {
		p.roles[role.Name] = role
	}
	for _, role := range custom {
		if role.Name == "" {
			return nil, fmt.Errorf("role name is required")
		}
		if _, exists := p.roles[role.Name]; exists {
			return nil, fmt.Errorf("role %q already defined", role.Name)
		}
		p.roles[role.Name] = role
	}

	for name := range p.roles {
		if err := p.checkInheritance(name); err != nil {
			return nil, err
		}
	}
	for _, b := range bindings {
		if b.User == "" {
			return nil, fmt.Errorf("binding user is required")
		}
		for _, name := range b.Roles {
			if _, ok := p.roles[name]; !ok {
				return nil, fmt.Errorf("binding for user %q references unknown role %q", b.User, name)
			}
		}
	}
	p.bindings = append([]Binding(nil), bindings...)
	return p, nil
}

func (p *Policy) checkInheritance(name string) error {
	seen := map[string]bool{}
	for cur := name; cur != ""; {
		if seen[cur] {
			return fmt.Errorf("role %q has an inheritance cycle", name)
		}
		seen[cur] = true
		role, ok := p.roles[cur]
		if !ok {
			return fmt.Errorf("role %q inherits unknown role %q", name, cur)
		}
		cur = role.Parent
	}
	return nil
}

// ParsePolicy parses a YAML policy document
func ParsePolicy(data []byte) (*Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	roles := make([]Role, 0, len(file.Roles))
	for _, r := range file.Roles {
		role := Role{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Description: r.Description,
			Parent:      r.Parent,
		}
		for _, s := range r.Permissions {
			perm, err := ParsePermission(s)
			if err != nil {
				return nil, fmt.Errorf("role %q: %w", r.Name, err)
			}
			role.Permissions = append(role.Permissions, perm)
		}
		roles = append(roles, role)
	}
	return NewPolicy(roles, file.Bindings)
}

// LoadPolicy reads a YAML policy document from disk
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// Role returns a role by name
func (p *Policy) Role(name string) (Role, bool) {
	role, ok := p.roles[name]
	return role, ok
}

// Roles lists every role sorted by name
func (p *Policy) Roles() []Role {
	roles := make([]Role, 0, len(p.roles))
	for _, role := range p.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// boundRoles returns the names of roles bound to the user in the space
func (p *Policy) boundRoles(userID, space string) []string {
	seen := map[string]bool{}
	var names []string
	for _, b := range p.bindings {
		if !b.Applies(userID, space) {
			continue
		}
		for _, name := range b.Roles {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// resolve expands a role into itself followed by its ancestors
func (p *Policy) resolve(name string) []Role {
	var chain []Role
	for cur := name; cur != ""; {
		role := p.roles[cur]
		chain = append(chain, role)
		cur = role.Parent
	}
	return chain
}
