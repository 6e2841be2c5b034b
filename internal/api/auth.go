package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/session"
)

// loginRequest is the POST /auth/login request body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// principalResponse is the wire form of an authenticated principal.
type principalResponse struct {
	ID          string              `json:"id"`
	Role        access.Role         `json:"role"`
	Permissions []access.Permission `json:"permissions"`
}

// sessionResponse is returned by login and refresh.
type sessionResponse struct {
	State       string             `json:"state"`
	Principal   *principalResponse `json:"principal,omitempty"`
	AccessToken string             `json:"access_token,omitempty"`
}

func toPrincipalResponse(p *access.Principal) *principalResponse {
	if p == nil {
		return nil
	}
	return &principalResponse{
		ID:          p.ID,
		Role:        p.Role,
		Permissions: p.EffectivePermissions(),
	}
}

// handleLogin exchanges credentials for an authenticated session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	principal, err := s.machine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid username or password")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	if s.idle != nil {
		s.idle.Enable()
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		State:       string(s.machine.State()),
		Principal:   toPrincipalResponse(principal),
		AccessToken: s.machine.AccessToken(),
	})
}

// handleRefresh forces a token refresh on the current session.
// Concurrent calls collapse into one exchange inside the machine.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	accessToken, err := s.machine.Refresh(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			writeUnauthorized(w, "no active session")
		case errors.Is(err, session.ErrRefreshRejected):
			writeUnauthorized(w, "session expired, sign in again")
		default:
			s.logger.Error("refresh failed", "error", err)
			writeInternalError(w, "refresh failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		State:       string(s.machine.State()),
		Principal:   toPrincipalResponse(s.machine.Principal()),
		AccessToken: accessToken,
	})
}

// handleLogout terminates the session. The credential store is cleared
// before any observer hears about it, and server-side refresh tokens
// are revoked so the pair cannot be replayed.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := s.machine.Principal()

	if s.idle != nil {
		s.idle.Disable()
	}
	s.machine.Logout(r.Context(), session.LogoutExplicit)

	if s.revoker != nil && principal != nil {
		if err := s.revoker.Revoke(r.Context(), principal.ID); err != nil {
			s.logger.Warn("revoking refresh tokens on logout", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the principal behind the presented bearer token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}
