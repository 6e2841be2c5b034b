package api

import (
	"encoding/json"
	"net/http"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/audit"
)

// guardRequest is the POST /guard/evaluate request body. The route
// descriptor comes straight from the caller's routing table.
type guardRequest struct {
	Route access.RouteConfig `json:"route"`
}

// guardResponse carries the decision plus, on denial, the
// user-displayable error the caller should render.
type guardResponse struct {
	Allowed         bool                    `json:"allowed"`
	Reason          access.DenyReason       `json:"reason,omitempty"`
	PermissionError *access.PermissionError `json:"permission_error,omitempty"`
}

// handleGuardEvaluate runs the route access evaluation for the caller's
// identity. Anonymous callers are evaluated as unauthenticated rather
// than rejected: the decision itself is the product.
func (s *Server) handleGuardEvaluate(w http.ResponseWriter, r *http.Request) {
	var req guardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	principal := principalFrom(r.Context())
	decision := access.Evaluate(req.Route, principal)

	resp := guardResponse{Allowed: decision.Allowed}
	if !decision.Allowed {
		perr := access.FromDenial(decision)
		resp.Reason = decision.Reason
		resp.PermissionError = &perr
		s.recordDenial(r, req.Route, principal, decision)
	}

	writeJSON(w, http.StatusOK, resp)
}

// recordDenial writes a denied access to the audit trail.
func (s *Server) recordDenial(r *http.Request, route access.RouteConfig, principal *access.Principal, decision access.Decision) {
	if s.auditRepo == nil {
		return
	}

	subjectID := ""
	if principal != nil {
		subjectID = principal.ID
	}
	details := map[string]any{
		"path":   route.Path,
		"reason": string(decision.Reason),
	}
	if decision.RequiredRole != "" {
		details["required_role"] = string(decision.RequiredRole)
	}
	if decision.MissingPermission != "" {
		details["missing_permission"] = string(decision.MissingPermission)
	}

	entry := &audit.Entry{Action: audit.ActionDenied, SubjectID: subjectID, Details: details}
	if err := s.auditRepo.Create(r.Context(), entry); err != nil {
		s.logger.Warn("recording denied access", "error", err)
	}
}
