package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/session"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// createUserRequest is the POST /users request body.
type createUserRequest struct {
	Username    string              `json:"username"`
	DisplayName string              `json:"display_name"`
	Password    string              `json:"password"`
	Role        access.Role         `json:"role"`
	Permissions []access.Permission `json:"permissions"`
}

// updateUserRequest is the PATCH /users/{id} request body. Pointer
// fields distinguish "not provided" from zero values.
type updateUserRequest struct {
	DisplayName *string              `json:"display_name"`
	Password    *string              `json:"password"`
	Role        *access.Role         `json:"role"`
	Permissions *[]access.Permission `json:"permissions"`
	IsActive    *bool                `json:"is_active"`
}

// handleListUsers returns all accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("listing users", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleCreateUser creates a new account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" {
		writeBadRequest(w, "username is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if !access.IsValidRole(req.Role) {
		writeBadRequest(w, "invalid role: "+string(req.Role))
		return
	}

	hash, err := session.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	user := &session.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		Permissions:  req.Permissions,
		IsActive:     true,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, session.ErrUsernameExists) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "username already exists")
			return
		}
		s.logger.Error("creating user", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single account.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("getting user", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser modifies an account. A role or permission change
// revokes the account's refresh tokens so stale grants cannot be
// refreshed back to life.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("getting user", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	grantsChanged := false
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		if !access.IsValidRole(*req.Role) {
			writeBadRequest(w, "invalid role: "+string(*req.Role))
			return
		}
		grantsChanged = grantsChanged || user.Role != *req.Role
		user.Role = *req.Role
	}
	if req.Permissions != nil {
		grantsChanged = true
		user.Permissions = *req.Permissions
	}
	if req.IsActive != nil {
		grantsChanged = grantsChanged || user.IsActive != *req.IsActive
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.logger.Error("updating user", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			writeBadRequest(w, "password must be at least 8 characters")
			return
		}
		hash, err := session.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("hashing password", "error", err)
			writeInternalError(w, "failed to update password")
			return
		}
		if err := s.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
			s.logger.Error("updating password", "error", err)
			writeInternalError(w, "failed to update password")
			return
		}
		grantsChanged = true
	}

	if grantsChanged && s.revoker != nil {
		if err := s.revoker.Revoke(r.Context(), user.ID); err != nil {
			s.logger.Warn("revoking tokens after account change", "user_id", user.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes an account and revokes its tokens.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("deleting user", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	if s.revoker != nil {
		if err := s.revoker.Revoke(r.Context(), id); err != nil {
			s.logger.Warn("revoking tokens after account deletion", "user_id", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
