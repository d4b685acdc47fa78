package portal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/tutordesk/internal/session"
)

const (
	// SessionCookieName is the name of the browser cookie.
	SessionCookieName = "tutordesk_session"
	// SessionDuration is the default cookie lifetime. Every request from the
	// browser restarts it.
	SessionDuration = 30 * 24 * time.Hour

	browserIDPrefix = "sess_"
)

// SessionManager gives every browser its own namespace in the shared SQLite
// session store. The cookie carries only the namespace id; the bearer token
// stays on the server.
type SessionManager struct {
	store    *session.SQLiteStore
	lifetime time.Duration
}

// NewSessionManager creates a session manager over st. The cookie expires
// after lifetime without a request; zero means SessionDuration.
func NewSessionManager(st *session.SQLiteStore, lifetime time.Duration) *SessionManager {
	if lifetime <= 0 {
		lifetime = SessionDuration
	}
	return &SessionManager{store: st, lifetime: lifetime}
}

// Browser returns the id and session store of the browser that sent r,
// issuing a new cookie when it has none or an unrecognizable one. A known
// cookie is sent back with a fresh expiry.
func (sm *SessionManager) Browser(w http.ResponseWriter, r *http.Request, secure bool) (string, session.Store) {
	id := newBrowserID()
	if cookie, err := r.Cookie(SessionCookieName); err == nil && validBrowserID(cookie.Value) {
		id = cookie.Value
	}
	SetSessionCookie(w, id, secure, sm.lifetime)
	return id, sm.store.Scope(id)
}

// Seen records that the browser id made a request, so CleanupIdle keeps its
// session for as long as it is in use.
func (sm *SessionManager) Seen(ctx context.Context, id string) error {
	return sm.store.Touch(ctx, id)
}

// CleanupIdle removes the sessions of browsers that have made no request for
// longer than the cookie lifetime. Their cookies have expired, so no browser
// can reach them any more.
func (sm *SessionManager) CleanupIdle(ctx context.Context) (int64, error) {
	return sm.store.Purge(ctx, sm.lifetime)
}

// SetSessionCookie sets the browser cookie on the response. Lax keeps the
// cookie on top-level navigations from other sites, such as an emailed link.
func SetSessionCookie(w http.ResponseWriter, id string, secure bool, lifetime time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(lifetime.Seconds()),
		Expires:  time.Now().Add(lifetime),
	})
}

func newBrowserID() string {
	return browserIDPrefix + uuid.NewString()
}

func validBrowserID(s string) bool {
	rest, ok := strings.CutPrefix(s, browserIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
