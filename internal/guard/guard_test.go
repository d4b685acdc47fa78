package guard

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/me/tutordesk/internal/apiclient"
	"github.com/me/tutordesk/internal/fakeapi"
	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/internal/session"
	"github.com/me/tutordesk/pkg/model"
)

func tokenWith(role, fullname string) string {
	claims := jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if fullname != "" {
		claims["fullname"] = fullname
	}
	return fakeapi.SignToken(claims)
}

func newGuard(t *testing.T) (*Guard, *session.MemoryStore) {
	t.Helper()
	st := session.NewMemoryStore()
	return New(st, "", logging.Discard()), st
}

func seed(t *testing.T, st session.Store, sess model.Session) {
	t.Helper()
	if err := session.Save(context.Background(), st, sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestDecodeClaims(t *testing.T) {
	claims, err := DecodeClaims(tokenWith("admin", "Admin Teacher"))
	if err != nil {
		t.Fatalf("DecodeClaims: %v", err)
	}
	if claims.Role != "admin" || claims.Fullname != "Admin Teacher" || claims.Subject != "7" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.HasExpiry() {
		t.Error("expected exp claim to be read")
	}
}

func TestDecodeClaims_IgnoresSignatureAndExpiry(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "student",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	raw, err := expired.SignedString([]byte("some-other-key"))
	if err != nil {
		t.Fatal(err)
	}
	claims, err := DecodeClaims(raw)
	if err != nil {
		t.Fatalf("DecodeClaims: %v", err)
	}
	if claims.Role != "student" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestDecodeClaims_Malformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "a.b.c", "not-a-jwt.at-all"} {
		_, err := DecodeClaims(raw)
		if err == nil {
			t.Errorf("DecodeClaims(%q): expected error", raw)
			continue
		}
		if !errors.Is(err, model.ErrMalformedToken) {
			t.Errorf("DecodeClaims(%q): error %v does not wrap ErrMalformedToken", raw, err)
		}
		if model.KindOf(err) != model.KindDecode {
			t.Errorf("DecodeClaims(%q): kind = %q, want DECODE", raw, model.KindOf(err))
		}
	}
}

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		claim    string
		want     model.Role
	}{
		{"explicit admin wins over student claim", "admin", "student", model.RoleAdmin},
		{"explicit student wins over admin claim", "student", "admin", model.RoleStudent},
		{"claim used without explicit", "", "admin", model.RoleAdmin},
		{"claim case folded", "", " Admin ", model.RoleAdmin},
		{"unknown explicit falls back to claim", "teacher", "admin", model.RoleAdmin},
		{"nothing known defaults to student", "", "", model.RoleStudent},
		{"unknown claim defaults to student", "", "superuser", model.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRole(tt.explicit, model.Claims{Role: tt.claim})
			if got != tt.want {
				t.Errorf("ResolveRole(%q, %q) = %q, want %q", tt.explicit, tt.claim, got, tt.want)
			}
		})
	}
}

func TestEnter_NoSession(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	for _, route := range []Route{RouteStudentDashboard, RouteAdminDashboard, RouteRoot, "/elsewhere"} {
		d, err := g.Enter(ctx, route)
		if err != nil {
			t.Fatalf("Enter(%s): %v", route, err)
		}
		if d.Mount || d.State != StateRedirecting || d.Target != RouteLogin {
			t.Errorf("Enter(%s) = %+v, want redirect to %s", route, d, RouteLogin)
		}
	}

	for _, route := range []Route{RouteLogin, RouteRegister} {
		d, err := g.Enter(ctx, route)
		if err != nil {
			t.Fatalf("Enter(%s): %v", route, err)
		}
		if !d.Mount || d.State != StateUnauthenticated {
			t.Errorf("Enter(%s) = %+v, want mount", route, d)
		}
	}
}

func TestEnter_CustomEntry(t *testing.T) {
	g := New(session.NewMemoryStore(), RouteRegister, logging.Discard())
	d, err := g.Enter(context.Background(), RouteStudentDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if d.Target != RouteRegister {
		t.Errorf("Target = %s, want %s", d.Target, RouteRegister)
	}
}

func TestEnter_Student(t *testing.T) {
	g, st := newGuard(t)
	seed(t, st, model.Session{Token: tokenWith("student", "Ali Valiyev")})
	ctx := context.Background()

	d, err := g.Enter(ctx, RouteStudentDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Mount || d.State != StateStudent {
		t.Errorf("student dashboard: %+v", d)
	}
	if d.Session.DisplayName != "Ali Valiyev" {
		t.Errorf("display name = %q, want claim fallback", d.Session.DisplayName)
	}

	d, err = g.Enter(ctx, RouteAdminDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if d.Mount || d.Target != RouteStudentDashboard {
		t.Errorf("admin dashboard as student: %+v, want redirect to student dashboard", d)
	}

	d, err = g.Enter(ctx, RouteLogin)
	if err != nil {
		t.Fatal(err)
	}
	if d.Mount || d.Target != RouteStudentDashboard {
		t.Errorf("login while signed in: %+v", d)
	}
}

func TestEnter_RoleHintWinsOverClaim(t *testing.T) {
	g, st := newGuard(t)
	seed(t, st, model.Session{Token: tokenWith("student", ""), Role: model.RoleAdmin})

	d, err := g.Enter(context.Background(), RouteAdminDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Mount || d.State != StateAdmin {
		t.Errorf("Enter = %+v, want admin mount from cached role", d)
	}
}

func TestEnter_UnknownRoleNeverAdmin(t *testing.T) {
	g, st := newGuard(t)
	seed(t, st, model.Session{Token: tokenWith("superuser", "")})
	if err := st.Set(context.Background(), model.KeyRole, "root"); err != nil {
		t.Fatal(err)
	}

	d, err := g.Enter(context.Background(), RouteAdminDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if d.Mount || d.State != StateStudent {
		t.Errorf("Enter = %+v, want student redirect", d)
	}
}

func TestEnter_MalformedTokenClearsSession(t *testing.T) {
	g, st := newGuard(t)
	seed(t, st, model.Session{Token: "garbage", DisplayName: "Ali", Role: model.RoleStudent})

	d, err := g.Enter(context.Background(), RouteStudentDashboard)
	if err != nil {
		t.Fatal(err)
	}
	if d.Mount || d.Target != RouteLogin {
		t.Errorf("Enter = %+v, want redirect to login", d)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d keys after malformed token, want 0", st.Len())
	}
}

func TestCompleteLogin(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		claim    string
		want     model.Role
		landing  Route
	}{
		{"explicit admin", "admin", "student", model.RoleAdmin, RouteAdminDashboard},
		{"claim only", "", "admin", model.RoleAdmin, RouteAdminDashboard},
		{"no role anywhere", "", "", model.RoleStudent, RouteStudentDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, st := newGuard(t)
			ctx := context.Background()
			resp := &model.LoginResponse{AccessToken: tokenWith(tt.claim, "Nodira"), Role: tt.explicit}

			d, err := g.CompleteLogin(ctx, resp, "")
			if err != nil {
				t.Fatalf("CompleteLogin: %v", err)
			}
			if d.Target != tt.landing || d.Mount {
				t.Errorf("decision = %+v, want navigate to %s", d, tt.landing)
			}
			sess, err := session.Load(ctx, st)
			if err != nil {
				t.Fatal(err)
			}
			if sess.Token != resp.AccessToken || sess.Role != tt.want || sess.DisplayName != "Nodira" {
				t.Errorf("stored session = %+v", sess)
			}
		})
	}
}

func TestCompleteLogin_FallbackName(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()
	if _, err := g.CompleteLogin(ctx, &model.LoginResponse{AccessToken: tokenWith("student", "")}, "New Student"); err != nil {
		t.Fatal(err)
	}
	name, _, _ := st.Get(ctx, model.KeyDisplayName)
	if name != "New Student" {
		t.Errorf("display name = %q", name)
	}
}

func TestCompleteLogin_ReplacesPreviousSession(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()
	seed(t, st, model.Session{Token: tokenWith("admin", "Old"), DisplayName: "Old", Role: model.RoleAdmin})

	if _, err := g.CompleteLogin(ctx, &model.LoginResponse{AccessToken: tokenWith("student", "")}, ""); err != nil {
		t.Fatal(err)
	}
	sess, _ := session.Load(ctx, st)
	if sess.Role != model.RoleStudent || sess.DisplayName != "" {
		t.Errorf("stale hints survived login: %+v", sess)
	}
}

func TestCompleteLogin_RejectsBadResponse(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()

	if _, err := g.CompleteLogin(ctx, &model.LoginResponse{}, ""); model.KindOf(err) != model.KindDecode {
		t.Errorf("missing token: err = %v, want DECODE", err)
	}
	_, err := g.CompleteLogin(ctx, &model.LoginResponse{AccessToken: "nope"}, "")
	if !errors.Is(err, model.ErrMalformedToken) {
		t.Errorf("malformed token: err = %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d keys, want 0", st.Len())
	}
}

func TestLogout(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()
	seed(t, st, model.Session{Token: tokenWith("student", "Ali"), DisplayName: "Ali", Role: model.RoleStudent})

	d, err := g.Logout(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Target != RouteLogin || d.State != StateUnauthenticated {
		t.Errorf("Logout = %+v", d)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d keys after logout", st.Len())
	}

	d, _ = g.Enter(ctx, RouteStudentDashboard)
	if d.Mount {
		t.Error("protected view mounted after logout")
	}
}

func TestRecover_UnauthorizedRedirects(t *testing.T) {
	api := fakeapi.New()
	ts := api.Start(t)
	st := session.NewMemoryStore()
	client := apiclient.New(ts.URL, st, logging.Discard())
	g := New(st, "", logging.Discard())
	ctx := context.Background()

	seed(t, st, model.Session{Token: api.IssueToken(api.UserByEmail("ali@example.com")), Role: model.RoleStudent})
	api.RevokeAll()

	_, err := client.MyStats(ctx)
	if err == nil {
		t.Fatal("expected error after revocation")
	}
	d, ok := g.Recover(ctx, err)
	if !ok {
		t.Fatalf("Recover(%v) did not redirect", err)
	}
	if d.Target != RouteLogin || d.State != StateRedirecting {
		t.Errorf("Recover = %+v", d)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d keys after 401", st.Len())
	}
	if n := len(api.CallsTo(http.MethodGet, "/my-stats")); n != 1 {
		t.Errorf("/my-stats called %d times, want 1", n)
	}
}

func TestRecover_MalformedTokenClears(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()
	seed(t, st, model.Session{Token: "x"})

	_, err := DecodeClaims("x")
	if _, ok := g.Recover(ctx, err); !ok {
		t.Fatal("expected redirect")
	}
	if st.Len() != 0 {
		t.Errorf("store not cleared")
	}
}

func TestRecover_OtherErrorsStay(t *testing.T) {
	g, st := newGuard(t)
	ctx := context.Background()
	seed(t, st, model.Session{Token: tokenWith("student", "")})

	for _, err := range []error{
		&model.APIError{Kind: model.KindRejected, Status: 400, Detail: "Bugun davomat allaqachon belgilangan"},
		&model.APIError{Kind: model.KindServer, Status: 500},
		&model.APIError{Kind: model.KindNetwork, Message: "dial"},
		model.NewValidationError("Invalid payment"),
		errors.New("boom"),
	} {
		if d, ok := g.Recover(ctx, err); ok {
			t.Errorf("Recover(%v) = %+v, want no navigation", err, d)
		}
	}
	if st.Len() == 0 {
		t.Error("session cleared by non-auth error")
	}
}

func TestStateString(t *testing.T) {
	if StateAdmin.String() != "AuthenticatedAdmin" || State(42).String() != "State(42)" {
		t.Errorf("unexpected state strings")
	}
}
