package access

import "testing"

func TestFromDenial_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		decision   Decision
		wantKind   DenyReason
		wantAction SuggestedAction
	}{
		{
			name:       "unauthenticated suggests login",
			decision:   Decision{Reason: ReasonUnauthenticated},
			wantKind:   ReasonUnauthenticated,
			wantAction: ActionLogin,
		},
		{
			name:       "insufficient role suggests contacting admin",
			decision:   Decision{Reason: ReasonInsufficientRole, RequiredRole: RoleAdmin},
			wantKind:   ReasonInsufficientRole,
			wantAction: ActionContactAdmin,
		},
		{
			name:       "missing permission suggests contacting admin",
			decision:   Decision{Reason: ReasonMissingPermission, MissingPermission: PermMenuEdit},
			wantKind:   ReasonMissingPermission,
			wantAction: ActionContactAdmin,
		},
		{
			name:       "not resource owner suggests going home",
			decision:   Decision{Reason: ReasonNotResourceOwner},
			wantKind:   ReasonNotResourceOwner,
			wantAction: ActionGoHome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := FromDenial(tt.decision)
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", pe.Kind, tt.wantKind)
			}
			if pe.SuggestedAction != tt.wantAction {
				t.Errorf("SuggestedAction = %s, want %s", pe.SuggestedAction, tt.wantAction)
			}
			if pe.Message == "" {
				t.Error("Message should never be empty for a denial")
			}
		})
	}
}

func TestFromDenial_CarriesContext(t *testing.T) {
	pe := FromDenial(Decision{Reason: ReasonInsufficientRole, RequiredRole: RoleAdmin})
	if pe.RequiredRole != RoleAdmin {
		t.Errorf("RequiredRole = %s, want admin", pe.RequiredRole)
	}

	pe = FromDenial(Decision{Reason: ReasonMissingPermission, MissingPermission: PermMenuEdit})
	if pe.RequiredPermission != PermMenuEdit {
		t.Errorf("RequiredPermission = %s, want menu:edit", pe.RequiredPermission)
	}
}

func TestFromDenial_NeverFails(t *testing.T) {
	// An allowed or unclassified decision still yields a value.
	pe := FromDenial(Allow)
	if pe.SuggestedAction != ActionNone {
		t.Errorf("SuggestedAction = %s, want none", pe.SuggestedAction)
	}
}
