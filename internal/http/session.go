package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"energycalc/internal/log"
)

const sessionCookieName = "energycalc_session"

// startSession begins a new session for a full page load. The previous
// session named by the request cookie, if any, is discarded.
func (s *Server) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request) string {
	if old, ok := sessionFromRequest(r); ok {
		if err := s.svc.Reset(ctx, old); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Failed to reset previous session",
				log.FieldSessionID, old,
				log.FieldError, err)
		}
	}
	id := uuid.NewString()
	s.setSessionCookie(w, r, id)
	s.appMetrics.sessionsStarted.Add(1)
	return id
}

// currentSession returns the session of the request, starting one when the
// cookie is missing or malformed. A valid cookie is re-issued so its expiry
// follows the last activity rather than the page load.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) string {
	if id, ok := sessionFromRequest(r); ok {
		s.setSessionCookie(w, r, id)
		return id
	}
	id := uuid.NewString()
	s.setSessionCookie(w, r, id)
	s.appMetrics.sessionsStarted.Add(1)
	return id
}

func sessionFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
