// Package guard decides which view may mount for the current session and
// owns every navigation that session state forces: login landing, logout,
// and the redirect after the server invalidates a token.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/tutordesk/internal/session"
	"github.com/me/tutordesk/pkg/model"
)

// State is where a navigation ends up.
type State int

const (
	StateUnauthenticated State = iota
	StateStudent
	StateAdmin
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateStudent:
		return "AuthenticatedStudent"
	case StateAdmin:
		return "AuthenticatedAdmin"
	case StateRedirecting:
		return "Redirecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Route names a view.
type Route string

const (
	RouteRoot             Route = "/"
	RouteLogin            Route = "/login"
	RouteRegister         Route = "/register"
	RouteStudentDashboard Route = "/student/dashboard"
	RouteAdminDashboard   Route = "/admin/dashboard"
)

// DefaultEntry is the unauthenticated entry route.
const DefaultEntry = RouteLogin

// IsPublic reports whether route renders without a session.
func IsPublic(route Route) bool {
	return route == RouteLogin || route == RouteRegister
}

// LandingRoute is the view a role lands on after login.
func LandingRoute(role model.Role) Route {
	if role == model.RoleAdmin {
		return RouteAdminDashboard
	}
	return RouteStudentDashboard
}

func stateFor(role model.Role) State {
	if role == model.RoleAdmin {
		return StateAdmin
	}
	return StateStudent
}

// Decision is the outcome of one navigation. When Mount is true the
// requested Route renders; otherwise the caller navigates to Target and the
// requested view's data loading never runs.
type Decision struct {
	State   State
	Route   Route
	Target  Route
	Mount   bool
	Session model.Session
	Claims  model.Claims
}

// Guard gates views on session state.
type Guard struct {
	store  session.Store
	entry  Route
	logger *slog.Logger
}

// New creates a guard over st. entry is where unauthenticated navigations
// are sent; empty means DefaultEntry.
func New(st session.Store, entry Route, logger *slog.Logger) *Guard {
	if entry == "" {
		entry = DefaultEntry
	}
	return &Guard{store: st, entry: entry, logger: logger.With("component", "guard")}
}

// WithStore returns a copy of g bound to another session store.
func (g *Guard) WithStore(st session.Store) *Guard {
	cp := *g
	cp.store = st
	return &cp
}

// Entry returns the unauthenticated entry route.
func (g *Guard) Entry() Route { return g.entry }

// Enter decides whether route may mount.
func (g *Guard) Enter(ctx context.Context, route Route) (Decision, error) {
	sess, err := session.Load(ctx, g.store)
	if err != nil {
		return Decision{}, fmt.Errorf("guard %s: %w", route, err)
	}

	if !sess.IsAuthenticated() {
		if IsPublic(route) {
			return Decision{State: StateUnauthenticated, Route: route, Target: route, Mount: true}, nil
		}
		g.logger.Debug("no session, redirecting", "route", route, "target", g.entry)
		return g.redirecting(route), nil
	}

	sess, claims, ok := g.authenticate(ctx, sess)
	if !ok {
		if IsPublic(route) {
			return Decision{State: StateUnauthenticated, Route: route, Target: route, Mount: true}, nil
		}
		return g.redirecting(route), nil
	}

	d := Decision{State: stateFor(sess.Role), Route: route, Session: sess, Claims: claims}
	landing := LandingRoute(sess.Role)

	switch {
	case route == RouteAdminDashboard && sess.Role != model.RoleAdmin:
		d.Target = RouteStudentDashboard
	case route == RouteStudentDashboard || route == RouteAdminDashboard:
		d.Target, d.Mount = route, true
	default:
		// Root, public auth pages and unknown routes send a signed-in user
		// to their landing view.
		d.Target = landing
	}
	return d, nil
}

// CompleteLogin turns a successful login response into a session and
// returns the landing decision. fallbackName is shown when the token has no
// fullname claim.
func (g *Guard) CompleteLogin(ctx context.Context, resp *model.LoginResponse, fallbackName string) (Decision, error) {
	if err := resp.Validate(); err != nil {
		return g.redirecting(g.entry), err
	}
	claims, err := DecodeClaims(resp.AccessToken)
	if err != nil {
		if clearErr := g.store.Clear(ctx); clearErr != nil {
			g.logger.Error("clear session", "error", clearErr)
		}
		return g.redirecting(g.entry), err
	}

	role := ResolveRole(resp.Role, claims)
	if explicit, ok := model.ParseRole(resp.Role); ok {
		if tokenRole, tok := model.ParseRole(claims.Role); tok && tokenRole != explicit {
			g.logger.Warn("login role disagrees with token claim, using response field",
				"response_role", explicit, "token_role", tokenRole)
		}
	}

	sess := model.Session{Token: resp.AccessToken, DisplayName: claims.Fullname, Role: role}
	if sess.DisplayName == "" {
		sess.DisplayName = fallbackName
	}

	if err := g.store.Clear(ctx); err != nil {
		return Decision{}, fmt.Errorf("reset session: %w", err)
	}
	if err := session.Save(ctx, g.store, sess); err != nil {
		return Decision{}, err
	}

	g.logger.Info("signed in", "role", role, "name", sess.DisplayName)
	landing := LandingRoute(role)
	return Decision{State: stateFor(role), Route: g.entry, Target: landing, Session: sess, Claims: claims}, nil
}

// Logout clears the session before the caller navigates anywhere.
func (g *Guard) Logout(ctx context.Context) (Decision, error) {
	if err := g.store.Clear(ctx); err != nil {
		return Decision{}, fmt.Errorf("logout: %w", err)
	}
	g.logger.Info("signed out")
	return Decision{State: StateUnauthenticated, Route: g.entry, Target: g.entry}, nil
}

// Recover is the single place errors turn into navigation. A 401 or an
// undecodable token sends the user to the entry route with the session
// cleared; every other error leaves the current view in place (ok false).
func (g *Guard) Recover(ctx context.Context, err error) (Decision, bool) {
	switch {
	case errors.Is(err, model.ErrSessionInvalidated):
		// The API client cleared the store when it saw the 401.
	case errors.Is(err, model.ErrMalformedToken):
		if clearErr := g.store.Clear(ctx); clearErr != nil {
			g.logger.Error("clear session", "error", clearErr)
		}
	default:
		return Decision{}, false
	}
	g.logger.Info("session ended by error, redirecting", "target", g.entry, "error", err)
	return g.redirecting(g.entry), true
}

// authenticate decodes the stored token. An undecodable token is treated as
// no token: the store is cleared and ok is false. The cached role hint wins
// over the claim because it recorded the login response's explicit role.
func (g *Guard) authenticate(ctx context.Context, sess model.Session) (model.Session, model.Claims, bool) {
	claims, err := DecodeClaims(sess.Token)
	if err != nil {
		g.logger.Warn("stored token is malformed, clearing session", "error", err)
		if clearErr := g.store.Clear(ctx); clearErr != nil {
			g.logger.Error("clear session", "error", clearErr)
		}
		return model.Session{}, model.Claims{}, false
	}
	if sess.Role == "" {
		sess.Role = ResolveRole("", claims)
	}
	if sess.DisplayName == "" {
		sess.DisplayName = claims.Fullname
	}
	return sess, claims, true
}

func (g *Guard) redirecting(route Route) Decision {
	return Decision{State: StateRedirecting, Route: route, Target: g.entry}
}
