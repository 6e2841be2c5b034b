// Package access implements the role and permission model of the Linden
// access core and the route access decision procedure.
//
// The model has three layers:
//
//   - Roles form a strict hierarchy (guest < member < admin) expressed
//     as a ranked list. A higher role inherits the entire effective
//     permission set of every role below it.
//   - Permissions are opaque string capabilities. The wildcard "*"
//     satisfies every permission check. EffectivePermissions resolves a
//     role plus base grants into the full set; it is pure and idempotent.
//   - Ownership binds a resource to a subject identity. Owner-scoped
//     routes are the one place where role rank alone is not enough:
//     the owner always passes, admins pass only where the route allows
//     the override, and access to other identities' personal data must
//     be granted through an explicit permission, never inferred.
//
// Evaluate applies these layers to a RouteConfig in a fixed first-match
// order (public, authentication, ownership, roles, permissions).
// Denials are value objects; FromDenial shapes them for display.
//
// Everything in this package is side-effect free and safe for
// concurrent use.
package access
