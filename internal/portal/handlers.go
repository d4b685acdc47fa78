// Package portal serves the tutoring center as server-rendered web pages.
// Each browser gets a cookie naming its own session namespace; the API
// client, the route guard and the duplicate-submit gates are all scoped to
// that namespace.
package portal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/me/tutordesk/internal/apiclient"
	"github.com/me/tutordesk/internal/form"
	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/pkg/model"
)

// Portal handles the web user interface.
type Portal struct {
	router   chi.Router
	client   *apiclient.Client
	guard    *guard.Guard
	sessions *SessionManager
	gates    *form.Gates
	logger   *slog.Logger
	secure   bool // Use secure cookies (HTTPS)
}

// Config holds portal configuration.
type Config struct {
	Secure bool // Use secure cookies for HTTPS
}

// New creates the portal. client and g are templates: every request works on
// copies bound to the calling browser's session.
func New(client *apiclient.Client, g *guard.Guard, sessions *SessionManager, logger *slog.Logger, cfg Config) *Portal {
	p := &Portal{
		router:   chi.NewRouter(),
		client:   client,
		guard:    g,
		sessions: sessions,
		gates:    form.NewGates(),
		logger:   logger.With("component", "portal"),
		secure:   cfg.Secure,
	}
	p.routes()
	return p
}

// ServeHTTP implements http.Handler.
func (p *Portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for the portal.
func (p *Portal) Handler() http.Handler {
	return p.router
}

// HandleRoot sends the browser wherever the guard says it belongs.
func (p *Portal) HandleRoot(w http.ResponseWriter, r *http.Request) {
	d, err := p.guardFor(r).Enter(r.Context(), guard.Route(r.URL.Path))
	if err != nil {
		p.renderError(w, "Session unavailable", err)
		return
	}
	http.Redirect(w, r, string(d.Target), http.StatusSeeOther)
}

// --- Auth ---

// HandleLogin renders the login page.
func (p *Portal) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p.render(w, "login", p.page(r, "Sign in"))
}

// HandleLoginPost processes the login form.
func (p *Portal) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectFlash(w, r, "/login", "error", "Invalid request")
		return
	}
	req := model.LoginRequest{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}

	var d guard.Decision
	err := p.gate(r, "login", func() error {
		resp, err := p.clientFor(r).Login(r.Context(), req)
		if err != nil {
			return err
		}
		d, err = p.guardFor(r).CompleteLogin(r.Context(), resp, "")
		return err
	})
	switch {
	case err == nil:
		http.Redirect(w, r, string(d.Target), http.StatusSeeOther)
	case errors.Is(err, form.ErrInFlight):
		redirectFlash(w, r, "/login", "notice", "Signing in, please wait")
	case model.KindOf(err) == model.KindAuth:
		// A 401 on the login form is a bad password, not an expired session.
		redirectFlash(w, r, "/login", "error", userMessage(err, "Invalid email or password"))
	default:
		p.logger.Warn("login failed", "email", req.Email, "error", err)
		redirectFlash(w, r, "/login", "error", userMessage(err, "Sign in failed"))
	}
}

// HandleRegister renders the registration page.
func (p *Portal) HandleRegister(w http.ResponseWriter, r *http.Request) {
	p.render(w, "register", p.page(r, "Register"))
}

// HandleRegisterPost processes the registration form.
func (p *Portal) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectFlash(w, r, "/register", "error", "Invalid request")
		return
	}
	req := model.RegisterRequest{
		Fullname: strings.TrimSpace(r.FormValue("fullname")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Course:   strings.TrimSpace(r.FormValue("course")),
	}
	err := p.gate(r, "register", func() error {
		return p.clientFor(r).Register(r.Context(), req)
	})
	switch {
	case err == nil:
		redirectFlash(w, r, "/login", "notice", "Registered, please sign in")
	case errors.Is(err, form.ErrInFlight):
		redirectFlash(w, r, "/register", "notice", "Registering, please wait")
	default:
		redirectFlash(w, r, "/register", "error", userMessage(err, "Registration failed"))
	}
}

// HandleLogout clears the session and redirects to the entry page.
func (p *Portal) HandleLogout(w http.ResponseWriter, r *http.Request) {
	d, err := p.guardFor(r).Logout(r.Context())
	if err != nil {
		p.renderError(w, "Sign out failed", err)
		return
	}
	http.Redirect(w, r, string(d.Target), http.StatusSeeOther)
}

// --- Student ---

// HandleStudentDashboard renders balance, attendance, grades and forms.
func (p *Portal) HandleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	data := p.page(r, "Dashboard")
	stats, err := p.clientFor(r).MyStats(r.Context())
	if err != nil {
		if p.redirectIfSessionEnded(w, r, err) {
			return
		}
		data["Error"] = userMessage(err, "Could not load your data")
	} else {
		data["Stats"] = stats
	}
	data["MinPayment"] = model.MinPaymentAmount
	p.render(w, "student", data)
}

// HandlePay submits a payment.
func (p *Portal) HandlePay(w http.ResponseWriter, r *http.Request) {
	const back = "/student/dashboard"
	amount, err := model.ParseAmount(r.FormValue("amount"))
	if err != nil {
		p.fail(w, r, err, back, "Invalid amount")
		return
	}
	p.submit(w, r, "pay", back, "Payment submitted, waiting for confirmation", func(ctx context.Context, c *apiclient.Client) error {
		return c.Pay(ctx, amount)
	})
}

// HandleSelfAttendance marks the student present for today.
func (p *Portal) HandleSelfAttendance(w http.ResponseWriter, r *http.Request) {
	p.submit(w, r, "attendance", "/student/dashboard", "Attendance recorded for today", func(ctx context.Context, c *apiclient.Client) error {
		return c.MarkSelfAttendance(ctx)
	})
}

// HandleProfile updates the student's profile.
func (p *Portal) HandleProfile(w http.ResponseWriter, r *http.Request) {
	req := model.UpdateProfileRequest{
		Fullname: strings.TrimSpace(r.FormValue("fullname")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Photo:    strings.TrimSpace(r.FormValue("photo")),
	}
	p.submit(w, r, "profile", "/student/dashboard", "Profile updated", func(ctx context.Context, c *apiclient.Client) error {
		return c.UpdateProfile(ctx, req)
	})
}

// --- Admin ---

// HandleAdminDashboard renders users, pending payments and back-office forms.
func (p *Portal) HandleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	data := p.page(r, "Admin")
	search := r.URL.Query().Get("search")
	data["Search"] = search

	c := p.clientFor(r)
	users, err := c.Users(r.Context())
	if err == nil {
		data["Users"] = model.FilterUsersByName(users, search)
		var pending []model.PendingPayment
		pending, err = c.PendingPayments(r.Context())
		data["Pending"] = pending
	}
	if err != nil {
		if p.redirectIfSessionEnded(w, r, err) {
			return
		}
		data["Error"] = userMessage(err, "Could not load the back office")
	}
	p.render(w, "admin", data)
}

// HandleStudentHistory renders one student's payments and attendance.
func (p *Portal) HandleStudentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		p.renderNotFound(w, r, "Student not found")
		return
	}
	reports, err := p.clientFor(r).Report(r.Context())
	if err != nil {
		p.fail(w, r, err, "/admin/dashboard", "Could not load the report")
		return
	}
	for i := range reports {
		if reports[i].ID == id {
			data := p.page(r, reports[i].Fullname)
			data["Student"] = &reports[i]
			p.render(w, "history", data)
			return
		}
	}
	p.renderNotFound(w, r, "Student not found")
}

// HandleMarkAttendance records attendance for a student.
func (p *Portal) HandleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	userID, err := formID(r, "user_id")
	if err != nil {
		p.fail(w, r, err, back, "Choose a student")
		return
	}
	status, ok := model.ParseAttendanceStatus(r.FormValue("status"))
	if !ok {
		p.fail(w, r, model.NewValidationError("Invalid attendance", model.FieldError{Field: "status", Message: "status must be present or absent"}), back, "")
		return
	}
	req := model.MarkAttendanceRequest{UserID: userID, Date: strings.TrimSpace(r.FormValue("date")), Status: status}
	if v := strings.TrimSpace(r.FormValue("lesson")); v != "" {
		if req.Lesson, err = strconv.Atoi(v); err != nil {
			p.fail(w, r, model.NewValidationError("Invalid attendance", model.FieldError{Field: "lesson", Message: "lesson must be a number"}), back, "")
			return
		}
	}
	p.submit(w, r, "attendance", back, "Attendance saved", func(ctx context.Context, c *apiclient.Client) error {
		return c.MarkAttendance(ctx, req)
	})
}

// HandleSetGrade records a grade.
func (p *Portal) HandleSetGrade(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	userID, err := formID(r, "user_id")
	if err != nil {
		p.fail(w, r, err, back, "Choose a student")
		return
	}
	req := model.SetGradeRequest{
		UserID:  userID,
		Grade:   strings.TrimSpace(r.FormValue("grade")),
		Comment: strings.TrimSpace(r.FormValue("comment")),
	}
	p.submit(w, r, "grade", back, "Grade saved", func(ctx context.Context, c *apiclient.Client) error {
		return c.SetGrade(ctx, req)
	})
}

// HandleConfirmPayment confirms a pending payment.
func (p *Portal) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err, back, "")
		return
	}
	p.submit(w, r, "confirm-"+strconv.FormatInt(id, 10), back, "Payment confirmed", func(ctx context.Context, c *apiclient.Client) error {
		return c.ConfirmPayment(ctx, id)
	})
}

// HandleAddPayment records a payment on a student's behalf.
func (p *Portal) HandleAddPayment(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	userID, err := formID(r, "user_id")
	if err != nil {
		p.fail(w, r, err, back, "Choose a student")
		return
	}
	amount, err := model.ParseAmount(r.FormValue("amount"))
	if err != nil {
		p.fail(w, r, err, back, "Invalid amount")
		return
	}
	p.submit(w, r, "add-payment", back, "Payment added", func(ctx context.Context, c *apiclient.Client) error {
		return c.AddPayment(ctx, userID, amount)
	})
}

// HandleUpdatePayment corrects the amount of a recorded payment.
func (p *Portal) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err, back, "")
		return
	}
	amount, err := model.ParseAmount(r.FormValue("amount"))
	if err != nil {
		p.fail(w, r, err, back, "Invalid amount")
		return
	}
	p.submit(w, r, "payment-"+strconv.FormatInt(id, 10), back, "Payment updated", func(ctx context.Context, c *apiclient.Client) error {
		return c.UpdatePayment(ctx, id, amount)
	})
}

// HandleDeleteUser removes an account.
func (p *Portal) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/dashboard"
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err, back, "")
		return
	}
	p.submit(w, r, "delete-"+strconv.FormatInt(id, 10), back, "User deleted", func(ctx context.Context, c *apiclient.Client) error {
		return c.DeleteUser(ctx, id)
	})
}

// --- helpers ---

// gate runs fn unless the same form in the caller's browser is already
// submitting.
func (p *Portal) gate(r *http.Request, name string, fn func() error) error {
	return p.gates.Do(browserFrom(r.Context()).id+"/"+name, fn)
}

// submit runs fn through the form's gate and answers with a redirect back to
// the view: a notice on success or while a previous submit is in flight, an
// error otherwise.
func (p *Portal) submit(w http.ResponseWriter, r *http.Request, name, back, success string, fn func(context.Context, *apiclient.Client) error) {
	err := p.gate(r, name, func() error {
		return fn(r.Context(), p.clientFor(r))
	})
	switch {
	case err == nil:
		redirectFlash(w, r, back, "notice", success)
	case errors.Is(err, form.ErrInFlight):
		redirectFlash(w, r, back, "notice", "Already submitting, please wait")
	default:
		p.fail(w, r, err, back, "Request failed")
	}
}

// fail reports err on the back view, unless the guard decides the session is
// over, in which case the browser goes to the entry page.
func (p *Portal) fail(w http.ResponseWriter, r *http.Request, err error, back, fallback string) {
	if p.redirectIfSessionEnded(w, r, err) {
		return
	}
	if model.KindOf(err) == "" {
		p.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	redirectFlash(w, r, back, "error", userMessage(err, fallback))
}

func (p *Portal) redirectIfSessionEnded(w http.ResponseWriter, r *http.Request, err error) bool {
	d, ok := p.guardFor(r).Recover(r.Context(), err)
	if !ok {
		return false
	}
	redirectFlash(w, r, string(d.Target), "notice", "Your session has ended, please sign in again")
	return true
}

func userMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = "Request failed"
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage(fallback)
	}
	return fallback
}

func redirectFlash(w http.ResponseWriter, r *http.Request, target, key, msg string) {
	http.Redirect(w, r, target+"?"+url.Values{key: {msg}}.Encode(), http.StatusSeeOther)
}

func formID(r *http.Request, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(field)), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("Invalid request", model.FieldError{Field: field, Message: field + " must be a positive number"})
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("Invalid request", model.FieldError{Field: "id", Message: "id must be a positive number"})
	}
	return id, nil
}

// page returns the data every page renders: title, signed-in user and the
// flash messages carried in the query string.
func (p *Portal) page(r *http.Request, title string) map[string]any {
	q := r.URL.Query()
	return map[string]any{
		"Title":  title + " - tutordesk",
		"User":   decisionFrom(r.Context()).Session,
		"Error":  q.Get("error"),
		"Notice": q.Get("notice"),
	}
}

func (p *Portal) render(w http.ResponseWriter, name string, data map[string]any) {
	p.renderStatus(w, http.StatusOK, name, data)
}

func (p *Portal) renderStatus(w http.ResponseWriter, status int, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var buf bytes.Buffer
	if err := renderTemplate(&buf, name, data); err != nil {
		p.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (p *Portal) renderError(w http.ResponseWriter, message string, err error) {
	p.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - tutordesk",
		"Message": message,
	}
	p.renderStatus(w, http.StatusInternalServerError, "error", data)
}

func (p *Portal) renderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	data := p.page(r, "Not found")
	data["Message"] = message
	p.renderStatus(w, http.StatusNotFound, "error", data)
}
