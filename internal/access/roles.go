package access

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleGuest is an unregistered or newly registered visitor.
	// Read-only access to public content.
	RoleGuest Role = "guest"

	// RoleMember is a registered reader with a personal profile page
	// and commenting rights.
	RoleMember Role = "member"

	// RoleAdmin manages content, menus, and user accounts. Inherits
	// everything below it in the hierarchy.
	RoleAdmin Role = "admin"
)

// roleRank orders roles by privilege. A higher rank inherits the full
// permission set of every rank below it. Adding a role means adding a
// row here and a base permission set in rolePermissions; the comparison
// logic never changes.
var roleRank = map[Role]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
}

// ValidRoles is the set of roles a principal may hold, in rank order.
var ValidRoles = []Role{RoleGuest, RoleMember, RoleAdmin}

// IsValidRole returns true if the role is part of the closed enumeration.
func IsValidRole(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// HasRoleOrHigher reports whether candidate is at least as privileged as
// required. It compares hierarchy rank, not string equality. Unknown
// roles never satisfy anything.
func HasRoleOrHigher(candidate, required Role) bool {
	cr, ok := roleRank[candidate]
	if !ok {
		return false
	}
	rr, ok := roleRank[required]
	if !ok {
		return false
	}
	return cr >= rr
}

// rolesAtOrBelow returns every valid role ranked at or below r.
func rolesAtOrBelow(r Role) []Role {
	rank, ok := roleRank[r]
	if !ok {
		return nil
	}
	var roles []Role
	for _, candidate := range ValidRoles {
		if roleRank[candidate] <= rank {
			roles = append(roles, candidate)
		}
	}
	return roles
}
