package access

// Permission represents a named capability in the system.
// Permissions are opaque strings compared for set membership; order
// never matters and duplicates are collapsed.
type Permission string

// Wildcard grants every permission. If it appears anywhere in a
// principal's effective set, every permission check passes.
const Wildcard Permission = "*"

// Permission constants.
const (
	PermContentRead    Permission = "content:read"
	PermCommentWrite   Permission = "comment:write"
	PermProfileRead    Permission = "profile:read"
	PermProfileEdit    Permission = "profile:edit"
	PermMenuEdit       Permission = "menu:edit"
	PermContentPublish Permission = "content:publish"
	PermUserManage     Permission = "user:manage"
	PermAuditView      Permission = "audit:view"

	// PermProfileReadAll is the explicit grant for reading other
	// identities' personal pages. Never inferred from role rank; an
	// admin dashboard that lists all members' data requires it.
	PermProfileReadAll Permission = "profile:read:all"
)

// rolePermissions maps each role to its statically declared base set.
// This is the single source of truth for the authorisation model.
// Hierarchy inheritance is applied by EffectivePermissions, so each
// role lists only what it adds over the ranks below it.
var rolePermissions = map[Role][]Permission{
	RoleGuest: {
		PermContentRead,
	},
	RoleMember: {
		PermCommentWrite,
		PermProfileRead,
		PermProfileEdit,
	},
	RoleAdmin: {
		PermMenuEdit,
		PermContentPublish,
		PermUserManage,
		PermAuditView,
		PermProfileReadAll,
	},
}

// PermissionsForRole returns the statically declared base set of a role,
// without inheritance. Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// EffectivePermissions computes the full permission set granted to a
// principal: the union of the statically declared sets of the role and
// every role ranked below it, plus the principal's own base grants.
//
// The function is pure and deterministic: identical inputs always yield
// the identical (sorted-insertion-order independent) set. Duplicates are
// collapsed. If the wildcard appears anywhere in the union it is kept;
// membership tests short-circuit on it.
func EffectivePermissions(role Role, base []Permission) []Permission {
	seen := make(map[Permission]struct{})
	var effective []Permission

	add := func(p Permission) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		effective = append(effective, p)
	}

	for _, r := range rolesAtOrBelow(role) {
		for _, p := range rolePermissions[r] {
			add(p)
		}
	}
	for _, p := range base {
		add(p)
	}

	return effective
}

// permissionSet is a membership index over an effective permission set.
type permissionSet map[Permission]struct{}

func newPermissionSet(perms []Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// has reports whether p is granted, honouring the wildcard short-circuit.
func (s permissionSet) has(p Permission) bool {
	if _, ok := s[Wildcard]; ok {
		return true
	}
	_, ok := s[p]
	return ok
}

// hasExplicit reports whether p itself is in the set. The wildcard does
// NOT satisfy an explicit check; ownership overrides use this so that
// blanket grants never leak into personal data.
func (s permissionSet) hasExplicit(p Permission) bool {
	_, ok := s[p]
	return ok
}
