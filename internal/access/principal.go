package access

// Principal is the authenticated subject making a request. A nil
// *Principal means the caller is anonymous.
//
// Permissions holds the principal's base grants as carried in its token;
// the effective set (hierarchy inheritance plus wildcard expansion) is
// computed on construction and cached, since principals are immutable
// for the lifetime of a session.
type Principal struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`

	effective permissionSet
}

// NewPrincipal constructs a Principal and resolves its effective
// permission set.
func NewPrincipal(id string, role Role, base []Permission) *Principal {
	return &Principal{
		ID:          id,
		Role:        role,
		Permissions: base,
		effective:   newPermissionSet(EffectivePermissions(role, base)),
	}
}

// IsAuthenticated reports whether the principal represents a real
// identity. Anonymous callers are represented by a nil *Principal, so
// any non-nil principal with an ID is authenticated.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.ID != ""
}

// EffectivePermissions returns the principal's resolved permission set.
func (p *Principal) EffectivePermissions() []Permission {
	if p == nil {
		return nil
	}
	return EffectivePermissions(p.Role, p.Permissions)
}

// HasPermission reports whether the principal holds perm, honouring the
// wildcard short-circuit. Anonymous principals hold nothing.
func (p *Principal) HasPermission(perm Permission) bool {
	if p == nil {
		return false
	}
	return p.effectiveSet().has(perm)
}

// HasAnyPermission reports whether the principal holds at least one of
// the given permissions.
func (p *Principal) HasAnyPermission(perms ...Permission) bool {
	for _, perm := range perms {
		if p.HasPermission(perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every one of
// the given permissions.
func (p *Principal) HasAllPermissions(perms ...Permission) bool {
	if p == nil {
		return len(perms) == 0
	}
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			return false
		}
	}
	return true
}

// IsAdminOrOwner reports whether the principal may act on a resource
// owned by resourceOwnerID: either the principal is the owner, or it
// holds admin rank. This is the sole check that factors identity
// instead of pure role rank.
func IsAdminOrOwner(p *Principal, resourceOwnerID string) bool {
	if p == nil {
		return false
	}
	if resourceOwnerID != "" && p.ID == resourceOwnerID {
		return true
	}
	return HasRoleOrHigher(p.Role, RoleAdmin)
}

// effectiveSet returns the cached membership index, building it lazily
// for principals constructed without NewPrincipal (e.g. decoded JSON).
func (p *Principal) effectiveSet() permissionSet {
	if p.effective == nil {
		p.effective = newPermissionSet(EffectivePermissions(p.Role, p.Permissions))
	}
	return p.effective
}
