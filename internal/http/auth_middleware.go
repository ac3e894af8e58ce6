package http

import (
	"context"
	"net/http"

	"precatorios/internal/analytics"
	"precatorios/internal/auth"
	"precatorios/internal/core"
	applog "precatorios/internal/log"
)

type ctxKey int

const (
	profileKeyCtx ctxKey = iota
	sessionKeyCtx
)

// authenticate resolves the bearer token and stores the profile and
// session in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, sessionID, err := s.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), profileKeyCtx, profile)
		ctx = context.WithValue(ctx, sessionKeyCtx, sessionID)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, profile.ID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin must run after authenticate.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !profileFrom(r.Context()).IsAdmin() {
			writeError(w, r, auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func profileFrom(ctx context.Context) core.Profile {
	p, _ := ctx.Value(profileKeyCtx).(core.Profile)
	return p
}

func sessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKeyCtx).(string)
	return id
}

func viewerFrom(ctx context.Context) analytics.Viewer {
	return auth.ViewerFor(profileFrom(ctx))
}

// profileKey rate limits per user rather than per address.
func profileKey(r *http.Request) string {
	return "user:" + profileFrom(r.Context()).ID
}
