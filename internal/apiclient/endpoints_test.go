package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/me/tutordesk/internal/fakeapi"
	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/internal/session"
	"github.com/me/tutordesk/pkg/model"
)

func TestPay_MinimumEnforcedBeforeDispatch(t *testing.T) {
	c, api, _ := newTestClient(t)
	loginAs(t, c, api, "ali@example.com")
	ctx := context.Background()

	err := c.Pay(ctx, 500)
	if model.KindOf(err) != model.KindInvalid {
		t.Fatalf("Pay(500) kind = %q, want INVALID", model.KindOf(err))
	}
	if n := len(api.CallsTo(http.MethodPost, "/student/pay")); n != 0 {
		t.Fatalf("Pay(500) dispatched %d requests, want 0", n)
	}

	if err := c.Pay(ctx, 1000); err != nil {
		t.Fatalf("Pay(1000): %v", err)
	}
	calls := api.CallsTo(http.MethodPost, "/student/pay")
	if len(calls) != 1 {
		t.Fatalf("Pay(1000) dispatched %d requests, want 1", len(calls))
	}
	if calls[0].Body != `{"amount":1000}` {
		t.Errorf("body = %s, want {\"amount\":1000}", calls[0].Body)
	}
}

func TestLoginAndRegister(t *testing.T) {
	c, api, _ := newTestClient(t)
	ctx := context.Background()

	err := c.Register(ctx, model.RegisterRequest{Fullname: "Dilnoza Karimova", Email: "dilnoza@example.com", Password: "pw123", Course: "IELTS"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u := api.UserByEmail("dilnoza@example.com"); u == nil || u.Course != "IELTS" {
		t.Fatalf("user not registered: %+v", u)
	}

	resp, err := c.Login(ctx, model.LoginRequest{Email: "dilnoza@example.com", Password: "pw123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("expected access token")
	}

	_, err = c.Login(ctx, model.LoginRequest{Email: "dilnoza@example.com", Password: "wrong"})
	if model.KindOf(err) != model.KindAuth {
		t.Errorf("bad password kind = %q, want AUTH", model.KindOf(err))
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	c, _, _ := newTestClient(t)
	err := c.Register(context.Background(), model.RegisterRequest{Fullname: "Ali", Email: "ali@example.com", Password: "x"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Kind != model.KindRejected {
		t.Errorf("kind = %q, want REJECTED", apiErr.Kind)
	}
	if got := apiErr.UserMessage("Registration failed"); got != "Bu email allaqachon ro'yxatdan o'tgan" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestUpdateProfile_OmitsPassword(t *testing.T) {
	c, api, _ := newTestClient(t)
	loginAs(t, c, api, "ali@example.com")

	err := c.UpdateProfile(context.Background(), model.UpdateProfileRequest{Fullname: "Ali V.", Email: "ali@example.com"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	body := api.CallsTo(http.MethodPut, "/update-profile")[0].Body
	if body != `{"fullname":"Ali V.","email":"ali@example.com"}` {
		t.Errorf("body = %s", body)
	}
	if api.UserByEmail("ali@example.com").Password != "student123" {
		t.Error("password should be unchanged")
	}
}

func TestAdminFlow(t *testing.T) {
	c, api, _ := newTestClient(t)
	ctx := context.Background()

	student := newStudentClient(t, c, api)
	if err := student.Pay(ctx, 200000); err != nil {
		t.Fatalf("student Pay: %v", err)
	}
	if err := student.Pay(ctx, 100000); err != nil {
		t.Fatalf("student Pay: %v", err)
	}

	loginAs(t, c, api, "admin@example.com")

	pending, err := c.PendingPayments(ctx)
	if err != nil {
		t.Fatalf("PendingPayments: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != 1 || pending[1].ID != 2 {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].Fullname != "Ali Valiyev" || pending[0].Amount != 200000 {
		t.Errorf("pending[0] = %+v", pending[0])
	}

	if err := c.ConfirmPayment(ctx, pending[0].ID); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	users, err := c.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	ali := model.FilterUsersByName(users, "ali")
	if len(ali) != 1 || ali[0].TotalPaid != 200000 || ali[0].TotalDebt != 300000 {
		t.Fatalf("ali = %+v", ali)
	}

	if err := c.MarkAttendance(ctx, model.MarkAttendanceRequest{UserID: ali[0].ID, Date: "2025-02-14", Status: model.AttendanceAbsent}); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	body := api.CallsTo(http.MethodPost, "/admin/mark-attendance")[0].Body
	if body != `{"user_id":2,"date":"2025-02-14","status":"kelmadi","lesson":1}` {
		t.Errorf("attendance body = %s", body)
	}

	if err := c.SetGrade(ctx, model.SetGradeRequest{UserID: ali[0].ID, Grade: "5", Comment: "a'lo"}); err != nil {
		t.Fatalf("SetGrade: %v", err)
	}

	if err := c.AddPayment(ctx, ali[0].ID, 50000); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if q := api.CallsTo(http.MethodPost, "/admin/payment/add/2")[0].Query; q != "amount=50000" {
		t.Errorf("add payment query = %q", q)
	}

	report, err := c.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(report) != 1 || len(report[0].Payments) != 2 || len(report[0].Attendance) != 1 {
		t.Fatalf("report = %+v", report)
	}
	last := report[0].LastPayment()
	if err := c.UpdatePayment(ctx, last.ID, 60000); err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}

	if err := c.DeleteUser(ctx, ali[0].ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if api.UserByEmail("ali@example.com") != nil {
		t.Error("user should be deleted")
	}
}

func TestAdminEndpoints_ForbiddenForStudent(t *testing.T) {
	c, api, st := newTestClient(t)
	loginAs(t, c, api, "ali@example.com")

	_, err := c.Users(context.Background())
	if model.KindOf(err) != model.KindRejected {
		t.Fatalf("kind = %q, want REJECTED for 403", model.KindOf(err))
	}
	if st.Len() == 0 {
		t.Error("403 must not clear the session")
	}
}

func TestAdminEndpoints_RejectBadIDsLocally(t *testing.T) {
	c, api, _ := newTestClient(t)
	loginAs(t, c, api, "admin@example.com")
	ctx := context.Background()

	checks := map[string]error{
		"confirm":        c.ConfirmPayment(ctx, 0),
		"delete":         c.DeleteUser(ctx, -1),
		"add payment":    c.AddPayment(ctx, 2, 0),
		"update payment": c.UpdatePayment(ctx, 0, 100),
		"grade":          c.SetGrade(ctx, model.SetGradeRequest{UserID: 2}),
	}
	for name, err := range checks {
		if model.KindOf(err) != model.KindInvalid {
			t.Errorf("%s: kind = %q, want INVALID", name, model.KindOf(err))
		}
	}
	if n := len(api.Calls()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestReport_RejectsRowWithoutID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 2, "fullname": "Ali Valiyev"}, {"id": 0, "fullname": "Ghost"}]`))
	}))
	defer ts.Close()
	c := New(ts.URL, session.NewMemoryStore(), logging.Discard())

	reports, err := c.Report(context.Background())
	if model.KindOf(err) != model.KindDecode {
		t.Fatalf("kind = %q, want DECODE (%v)", model.KindOf(err), err)
	}
	if reports != nil {
		t.Errorf("reports = %+v, want nil on a bad row", reports)
	}
}

// newStudentClient returns a second client, sharing c's API, signed in as
// the seeded student.
func newStudentClient(t *testing.T, c *Client, api *fakeapi.Server) *Client {
	t.Helper()
	student := c.WithSession(session.NewMemoryStore())
	loginAs(t, student, api, "ali@example.com")
	return student
}
