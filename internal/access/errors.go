package access

// SuggestedAction tells the presentation layer what to offer the user
// after a denial.
type SuggestedAction string

const (
	ActionLogin        SuggestedAction = "login"
	ActionContactAdmin SuggestedAction = "contactAdmin"
	ActionGoHome       SuggestedAction = "goHome"
	ActionNone         SuggestedAction = "none"
)

// PermissionError is the user-displayable form of a deny decision.
// It is created per denial and never persisted. It is a value object,
// not a Go error: access denials are expected outcomes, not faults.
type PermissionError struct {
	Kind               DenyReason      `json:"kind"`
	RequiredRole       Role            `json:"required_role,omitempty"`
	RequiredPermission Permission      `json:"required_permission,omitempty"`
	SuggestedAction    SuggestedAction `json:"suggested_action"`
	Message            string          `json:"message"`
}

// FromDenial converts a deny decision into a PermissionError. It never
// fails; an allowed or unrecognised decision maps to a no-op error with
// ActionNone so callers can rely on always getting a value.
func FromDenial(d Decision) PermissionError {
	switch d.Reason {
	case ReasonUnauthenticated:
		return PermissionError{
			Kind:            ReasonUnauthenticated,
			SuggestedAction: ActionLogin,
			Message:         "You need to sign in to view this page.",
		}
	case ReasonInsufficientRole:
		return PermissionError{
			Kind:            ReasonInsufficientRole,
			RequiredRole:    d.RequiredRole,
			SuggestedAction: ActionContactAdmin,
			Message:         "Your account does not have the required role for this page.",
		}
	case ReasonMissingPermission:
		return PermissionError{
			Kind:               ReasonMissingPermission,
			RequiredPermission: d.MissingPermission,
			SuggestedAction:    ActionContactAdmin,
			Message:            "Your account is missing a permission required for this page.",
		}
	case ReasonNotResourceOwner:
		return PermissionError{
			Kind:            ReasonNotResourceOwner,
			SuggestedAction: ActionGoHome,
			Message:         "This page belongs to another account.",
		}
	default:
		return PermissionError{
			SuggestedAction: ActionNone,
		}
	}
}
