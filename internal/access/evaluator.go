package access

// DenyReason classifies why a route access decision was negative.
type DenyReason string

const (
	ReasonUnauthenticated   DenyReason = "unauthenticated"
	ReasonNotResourceOwner  DenyReason = "not_resource_owner"
	ReasonInsufficientRole  DenyReason = "insufficient_role"
	ReasonMissingPermission DenyReason = "missing_permission"
)

// RouteConfig is the immutable route descriptor supplied by the routing
// collaborator. The access core never mutates it.
type RouteConfig struct {
	// Path identifies the route. Informational only; the evaluator
	// never pattern-matches on it.
	Path string `json:"path"`

	// RequiredRoles allows access when the principal satisfies ANY of
	// the listed roles (at-least-as-privileged comparison).
	RequiredRoles []Role `json:"required_roles,omitempty"`

	// RequiredPermissions allows access only when the principal's
	// effective set is a superset of ALL listed permissions.
	RequiredPermissions []Permission `json:"required_permissions,omitempty"`

	// IsPublic short-circuits every other check, including authentication.
	IsPublic bool `json:"is_public,omitempty"`

	// OwnerScoped marks the route as bound to a resource owner identity.
	// Ownership is checked before role and permission constraints so an
	// elevated role never accidentally satisfies a personal page.
	OwnerScoped bool `json:"owner_scoped,omitempty"`

	// OwnerID is the subject that owns the resource behind an
	// owner-scoped route, resolved by the routing collaborator.
	OwnerID string `json:"owner_id,omitempty"`

	// OwnerOnly disables the admin override on an owner-scoped route.
	// When false (the default), admin rank or ownership grants access.
	// When true, only the owner passes — unless OverridePermission is
	// set and the principal explicitly holds it.
	OwnerOnly bool `json:"owner_only,omitempty"`

	// OverridePermission, when non-empty on an OwnerOnly route, names
	// the explicit grant that lets a non-owner through (e.g.
	// profile:read:all for the member-management dashboard). The
	// wildcard does not satisfy it.
	OverridePermission Permission `json:"override_permission,omitempty"`
}

// Decision is the outcome of evaluating a route against a principal.
// It is a value object: a deny is data for the presentation layer,
// never an error to be thrown.
type Decision struct {
	Allowed bool
	Reason  DenyReason

	// RequiredRole is set on InsufficientRole denials: the lowest role
	// that would have satisfied the route.
	RequiredRole Role

	// MissingPermission is set on MissingPermission denials: the first
	// required permission the principal lacks.
	MissingPermission Permission
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Evaluate decides whether principal may access route. The decision
// order is fixed, first match wins:
//
//  1. Public routes are always allowed, even anonymously.
//  2. Anything else requires an authenticated principal.
//  3. Owner-scoped routes check identity (and the admin override)
//     before any role or permission constraint.
//  4. Role constraints: any listed role satisfied by rank.
//  5. Permission constraints: all listed permissions held (wildcard
//     short-circuits).
//  6. A route with no constraints is allowed.
//
// Ownership deliberately precedes the blanket role check so that admin
// rank alone never opens another identity's personal page unless the
// ownership rule itself grants it.
func Evaluate(route RouteConfig, principal *Principal) Decision {
	if route.IsPublic {
		return Allow
	}

	if !principal.IsAuthenticated() {
		return Decision{Reason: ReasonUnauthenticated}
	}

	if route.OwnerScoped {
		return evaluateOwnership(route, principal)
	}

	if len(route.RequiredRoles) > 0 {
		if !satisfiesAnyRole(principal.Role, route.RequiredRoles) {
			return Decision{
				Reason:       ReasonInsufficientRole,
				RequiredRole: lowestRole(route.RequiredRoles),
			}
		}
	}

	if len(route.RequiredPermissions) > 0 {
		for _, perm := range route.RequiredPermissions {
			if !principal.HasPermission(perm) {
				return Decision{
					Reason:            ReasonMissingPermission,
					MissingPermission: perm,
				}
			}
		}
	}

	return Allow
}

// evaluateOwnership applies the owner-scoped rule: the owner always
// passes; admins pass unless the route is owner-only; owner-only routes
// admit a non-owner solely through the route's explicit override
// permission.
func evaluateOwnership(route RouteConfig, principal *Principal) Decision {
	if route.OwnerID != "" && principal.ID == route.OwnerID {
		return Allow
	}

	if !route.OwnerOnly && HasRoleOrHigher(principal.Role, RoleAdmin) {
		return Allow
	}

	if route.OwnerOnly && route.OverridePermission != "" &&
		principal.effectiveSet().hasExplicit(route.OverridePermission) {
		return Allow
	}

	return Decision{Reason: ReasonNotResourceOwner}
}

// satisfiesAnyRole reports whether candidate meets at least one of the
// required roles by rank.
func satisfiesAnyRole(candidate Role, required []Role) bool {
	for _, r := range required {
		if HasRoleOrHigher(candidate, r) {
			return true
		}
	}
	return false
}

// lowestRole returns the least privileged of the given roles, i.e. the
// cheapest upgrade that would satisfy the route.
func lowestRole(roles []Role) Role {
	if len(roles) == 0 {
		return ""
	}
	lowest := roles[0]
	for _, r := range roles[1:] {
		if rank, ok := roleRank[r]; ok && rank < roleRank[lowest] {
			lowest = r
		}
	}
	return lowest
}
