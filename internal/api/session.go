package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/zkcredit/internal/model"
)

// CookieName is the cookie carrying the caller's session id.
const CookieName = "zkcredit_session"

const cookieMaxAge = 30 * 24 * time.Hour

type ctxKey struct{}

// withSession resolves the caller's session from its cookie, creating one
// when needed, and stores it on the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := cookieSession(r)
		sess, err := s.sessions.Resolve(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if sess.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    sess.ID,
				Path:     "/",
				MaxAge:   int(cookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(ctxKey{}).(*model.Session)
	return sess
}

// cookieSession returns the session id the caller presented, if any.
func cookieSession(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
