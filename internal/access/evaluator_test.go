package access

import "testing"

func TestEvaluate_PublicRouteAlwaysAllowed(t *testing.T) {
	route := RouteConfig{Path: "/about", IsPublic: true}

	if d := Evaluate(route, nil); !d.Allowed {
		t.Errorf("public route should allow anonymous access, got deny(%s)", d.Reason)
	}
	if d := Evaluate(route, NewPrincipal("u1", RoleGuest, nil)); !d.Allowed {
		t.Error("public route should allow authenticated access")
	}
}

func TestEvaluate_AnonymousDenied(t *testing.T) {
	route := RouteConfig{Path: "/account"}

	d := Evaluate(route, nil)
	if d.Allowed {
		t.Fatal("anonymous access to a non-public route should be denied")
	}
	if d.Reason != ReasonUnauthenticated {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonUnauthenticated)
	}
}

func TestEvaluate_GuestDeniedAdminRoute(t *testing.T) {
	route := RouteConfig{Path: "/admin", RequiredRoles: []Role{RoleAdmin}}
	guest := NewPrincipal("u1", RoleGuest, nil)

	d := Evaluate(route, guest)
	if d.Allowed {
		t.Fatal("guest should not satisfy an admin route")
	}
	if d.Reason != ReasonInsufficientRole {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonInsufficientRole)
	}
	if d.RequiredRole != RoleAdmin {
		t.Errorf("RequiredRole = %s, want %s", d.RequiredRole, RoleAdmin)
	}
}

func TestEvaluate_RoleSatisfiedByRank(t *testing.T) {
	// A route requiring member is satisfied by admin through hierarchy
	// rank, not string equality.
	route := RouteConfig{Path: "/comments", RequiredRoles: []Role{RoleMember}}
	admin := NewPrincipal("u1", RoleAdmin, nil)

	if d := Evaluate(route, admin); !d.Allowed {
		t.Errorf("admin should satisfy a member route by rank, got deny(%s)", d.Reason)
	}
}

func TestEvaluate_AnyRequiredRoleSuffices(t *testing.T) {
	route := RouteConfig{Path: "/mixed", RequiredRoles: []Role{RoleAdmin, RoleMember}}
	member := NewPrincipal("u1", RoleMember, nil)

	if d := Evaluate(route, member); !d.Allowed {
		t.Errorf("member should satisfy a route listing member, got deny(%s)", d.Reason)
	}
}

func TestEvaluate_WildcardShortCircuitsPermissions(t *testing.T) {
	route := RouteConfig{Path: "/menus", RequiredPermissions: []Permission{PermMenuEdit}}
	admin := NewPrincipal("u1", RoleAdmin, []Permission{Wildcard})

	if d := Evaluate(route, admin); !d.Allowed {
		t.Errorf("wildcard holder should pass every permission check, got deny(%s)", d.Reason)
	}
}

func TestEvaluate_MissingPermission(t *testing.T) {
	route := RouteConfig{Path: "/menus", RequiredPermissions: []Permission{PermMenuEdit}}
	member := NewPrincipal("u1", RoleMember, nil)

	d := Evaluate(route, member)
	if d.Allowed {
		t.Fatal("member should not hold menu:edit")
	}
	if d.Reason != ReasonMissingPermission {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonMissingPermission)
	}
	if d.MissingPermission != PermMenuEdit {
		t.Errorf("MissingPermission = %s, want %s", d.MissingPermission, PermMenuEdit)
	}
}

func TestEvaluate_AllPermissionsRequired(t *testing.T) {
	route := RouteConfig{
		Path:                "/publish",
		RequiredPermissions: []Permission{PermContentRead, PermContentPublish},
	}
	member := NewPrincipal("u1", RoleMember, nil)

	d := Evaluate(route, member)
	if d.Allowed {
		t.Fatal("member holds content:read but not content:publish")
	}
	if d.MissingPermission != PermContentPublish {
		t.Errorf("MissingPermission = %s, want %s", d.MissingPermission, PermContentPublish)
	}
}

func TestEvaluate_OwnerScoped_OwnerAllowedEvenAsGuest(t *testing.T) {
	route := RouteConfig{Path: "/profile/u1", OwnerScoped: true, OwnerID: "u1"}
	owner := NewPrincipal("u1", RoleGuest, nil)

	if d := Evaluate(route, owner); !d.Allowed {
		t.Errorf("resource owner should always pass, got deny(%s)", d.Reason)
	}
}

func TestEvaluate_OwnerScoped_OtherGuestDenied(t *testing.T) {
	route := RouteConfig{Path: "/profile/u1", OwnerScoped: true, OwnerID: "u1"}
	other := NewPrincipal("u2", RoleGuest, nil)

	d := Evaluate(route, other)
	if d.Allowed {
		t.Fatal("non-owner guest should be denied an owner-scoped route")
	}
	if d.Reason != ReasonNotResourceOwner {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonNotResourceOwner)
	}
}

func TestEvaluate_OwnerScoped_AdminOverrideByDefault(t *testing.T) {
	route := RouteConfig{Path: "/profile/u1", OwnerScoped: true, OwnerID: "u1"}
	admin := NewPrincipal("u9", RoleAdmin, nil)

	if d := Evaluate(route, admin); !d.Allowed {
		t.Errorf("admin should pass an owner-scoped route when override is allowed, got deny(%s)", d.Reason)
	}
}

func TestEvaluate_OwnerScoped_OwnerOnlyBlocksAdminRank(t *testing.T) {
	route := RouteConfig{Path: "/profile/u1/private", OwnerScoped: true, OwnerID: "u1", OwnerOnly: true}
	admin := NewPrincipal("u9", RoleAdmin, []Permission{Wildcard})

	d := Evaluate(route, admin)
	if d.Allowed {
		t.Fatal("owner-only route must not open on role rank or wildcard")
	}
	if d.Reason != ReasonNotResourceOwner {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonNotResourceOwner)
	}
}

func TestEvaluate_OwnerScoped_ExplicitOverridePermission(t *testing.T) {
	route := RouteConfig{
		Path:               "/members/u1/details",
		OwnerScoped:        true,
		OwnerID:            "u1",
		OwnerOnly:          true,
		OverridePermission: PermProfileReadAll,
	}

	admin := NewPrincipal("u9", RoleAdmin, nil) // admin base set carries profile:read:all
	if d := Evaluate(route, admin); !d.Allowed {
		t.Errorf("explicit override permission should grant non-owner access, got deny(%s)", d.Reason)
	}

	member := NewPrincipal("u2", RoleMember, nil)
	if d := Evaluate(route, member); d.Allowed {
		t.Error("member without the override permission should be denied")
	}

	wildcarded := NewPrincipal("u3", RoleMember, []Permission{Wildcard})
	if d := Evaluate(route, wildcarded); d.Allowed {
		t.Error("wildcard must not satisfy the explicit override permission")
	}
}

func TestEvaluate_OwnershipPrecedesRoleChecks(t *testing.T) {
	// An owner-scoped route that also lists required roles: ownership is
	// decided first, so the deny reason is NotResourceOwner rather than
	// InsufficientRole.
	route := RouteConfig{
		Path:          "/profile/u1",
		OwnerScoped:   true,
		OwnerID:       "u1",
		OwnerOnly:     true,
		RequiredRoles: []Role{RoleAdmin},
	}
	member := NewPrincipal("u2", RoleMember, nil)

	d := Evaluate(route, member)
	if d.Reason != ReasonNotResourceOwner {
		t.Errorf("Reason = %s, want %s (ownership decided first)", d.Reason, ReasonNotResourceOwner)
	}
}

func TestEvaluate_NoConstraintsAllows(t *testing.T) {
	route := RouteConfig{Path: "/dashboard"}
	guest := NewPrincipal("u1", RoleGuest, nil)

	if d := Evaluate(route, guest); !d.Allowed {
		t.Errorf("unconstrained route should allow any authenticated principal, got deny(%s)", d.Reason)
	}
}

func TestLowestRole(t *testing.T) {
	if got := lowestRole([]Role{RoleAdmin, RoleMember, RoleGuest}); got != RoleGuest {
		t.Errorf("lowestRole = %s, want guest", got)
	}
	if got := lowestRole(nil); got != "" {
		t.Errorf("lowestRole(nil) = %q, want empty", got)
	}
}
