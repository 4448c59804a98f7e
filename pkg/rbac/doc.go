// Package rbac provides role-based access control for searches and extension
// management.
//
// # Permissions
//
// A permission is resource:target:action, for example
// "search:empSearch:export" or "extension:Employee:write". Any segment may
// be "*", and "resource:action" is shorthand for "resource:*:action".
//
//	ResourceSearch     - named queries (actions search, table, export)
//	ResourceExtension  - extension fields of a point (actions read, write)
//	ResourceSettings   - per-user column settings (actions read, write)
//
// # Roles and bindings
//
// Roles group permissions and may inherit a parent role. The built-in roles
// form a chain: viewer, exporter (inherits viewer), editor (inherits
// exporter). admin grants everything. Bindings assign roles to a user,
// optionally only within one space:
//
//	roles:
//	  - name: hr
//	    parent: viewer
//	    permissions: ["search:empSearch:export"]
//	bindings:
//	  - user: alice
//	    space: acme
//	    roles: [hr]
//	  - user: "*"
//	    roles: [viewer]
//
// # Usage
//
//	policy, err := rbac.LoadPolicy("policy.yaml")
//	checker := rbac.NewPolicyChecker(policy, time.Minute, logger)
//	engine := search.NewEngine(registry, settings, db, search.WithAuthorizer(checker))
//
// PolicyChecker caches check results in an expiring LRU; SetPolicy swaps
// the policy and purges the cache.
package rbac
