package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"precatorios/internal/analytics"
	"precatorios/internal/auth"
	"precatorios/internal/core"
	applog "precatorios/internal/log"
)

type meResponse struct {
	core.Profile
	IsAdmin bool   `json:"is_admin"`
	Scope   string `json:"scope"`
}

type signInResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Profile     meResponse `json:"profile"`
}

func newMeResponse(p core.Profile, v analytics.Viewer) meResponse {
	return meResponse{Profile: p, IsAdmin: p.IsAdmin(), Scope: v.Scope()}
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	first, err := s.auth.IsFirstUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_first_user": first})
}

// handleSetup creates the first user as administrator.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.auth.Setup(r.Context(), p.Get("email"), p.Get("full_name"), p.GetSecret("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "First user created",
		applog.FieldUserID, profile.ID)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	token, profile, err := s.auth.SignIn(r.Context(), p.Get("email"), p.GetSecret("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt.UTC(),
		Profile:     newMeResponse(profile, auth.ViewerFor(profile)),
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), sessionFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newMeResponse(profileFrom(r.Context()), viewerFrom(r.Context())))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context(), profileFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []core.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	role := core.Role(p.Get("role"))
	if role == "" {
		role = core.RoleUser
	}
	profile, err := s.auth.CreateUser(r.Context(), profileFrom(r.Context()),
		p.Get("email"), p.Get("full_name"), p.GetSecret("password"), role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User created",
		applog.FieldOperation, applog.OpCreate,
		"created_user_id", profile.ID)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.auth.DeleteUser(r.Context(), profileFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User deleted",
		applog.FieldOperation, applog.OpDelete,
		"deleted_user_id", id)
	w.WriteHeader(http.StatusNoContent)
}
