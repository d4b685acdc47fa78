// Package fakeapi is an in-memory stand-in for the tutoring-center REST API.
// Tests across the module drive it through httptest.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/me/tutordesk/pkg/model"
)

// Secret signs every token the fake issues.
var Secret = []byte("fakeapi-secret")

// Call is one request the fake received.
type Call struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// User is an account known to the fake.
type User struct {
	ID         int64
	Fullname   string
	Email      string
	Password   string
	Role       model.Role
	Course     string
	Photo      string
	Debt       model.Amount
	Paid       model.Amount
	Active     bool
	Attendance []model.AttendanceEntry
	Grades     []model.Grade
	Payments   []model.Payment
}

// Server is the fake API.
type Server struct {
	// ExplicitRole makes /login include the role field in its response.
	ExplicitRole bool
	// RoleOverride, when set, is sent as the login role field instead of the
	// user's real role.
	RoleOverride string
	// Today is the date self-attendance is recorded under.
	Today string

	mu       sync.Mutex
	users    map[int64]*User
	nextID   int64
	nextPay  int64
	pending  map[int64]*pendingPayment
	tokens   map[string]int64
	calls    []Call
	holds    map[string]chan struct{}
	arrived  chan string
	statuses map[string]int
}

type pendingPayment struct {
	ID     int64
	UserID int64
	Amount model.Amount
}

// New returns a fake with one admin and one student:
// admin@example.com / admin123 and ali@example.com / student123.
func New() *Server {
	s := &Server{
		Today:    time.Now().Format(time.DateOnly),
		users:    make(map[int64]*User),
		pending:  make(map[int64]*pendingPayment),
		tokens:   make(map[string]int64),
		holds:    make(map[string]chan struct{}),
		arrived:  make(chan string, 16),
		statuses: make(map[string]int),
	}
	s.AddUser(&User{Fullname: "Admin Teacher", Email: "admin@example.com", Password: "admin123", Role: model.RoleAdmin, Active: true})
	s.AddUser(&User{Fullname: "Ali Valiyev", Email: "ali@example.com", Password: "student123", Role: model.RoleStudent, Debt: 500000, Active: true})
	return s
}

// Start serves the fake on an httptest server closed at test cleanup.
func (s *Server) Start(t interface{ Cleanup(func()) }) *httptest.Server {
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// AddUser registers u and assigns its ID.
func (s *Server) AddUser(u *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users[u.ID] = u
	return u
}

// UserByEmail returns the account for email, or nil.
func (s *Server) UserByEmail(email string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail(email)
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsTo returns the requests made to path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// RevokeAll invalidates every issued token, so the next protected call
// gets a 401.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

// FailWith makes every request to path answer status until reset with 0.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.statuses, path)
		return
	}
	s.statuses[path] = status
}

// Hold blocks requests to path until the returned release func is called.
// Arrived reports each held request as it comes in.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Arrived receives the path of every held request once it reaches the fake.
func (s *Server) Arrived() <-chan string {
	return s.arrived
}

// IssueToken signs a token for u the way the real API does.
func (s *Server) IssueToken(u *User) string {
	token := SignToken(jwt.MapClaims{
		"sub":      strconv.FormatInt(u.ID, 10),
		"role":     string(u.Role),
		"fullname": u.Fullname,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	s.mu.Lock()
	s.tokens[token] = u.ID
	s.mu.Unlock()
	return token
}

// SignToken signs arbitrary claims with Secret.
func SignToken(claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(Secret)
	if err != nil {
		panic(err)
	}
	return token
}

// Handler returns the fake's router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/my-stats", s.handleMyStats)
		r.Post("/student/pay", s.handlePay)
		r.Post("/student/attendance-self", s.handleSelfAttendance)
		r.Put("/update-profile", s.handleUpdateProfile)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/users", s.handleUsers)
			r.Get("/report", s.handleReport)
			r.Post("/mark-attendance", s.handleMarkAttendance)
			r.Post("/set-grade", s.handleSetGrade)
			r.Get("/pending-payments", s.handlePending)
			r.Post("/confirm-payment/{id}", s.handleConfirm)
			r.Delete("/delete-user/{id}", s.handleDeleteUser)
			r.Post("/payment/add/{id}", s.handleAddPayment)
			r.Put("/payment/{id}", s.handleUpdatePayment)
		})
	})
	return r
}

// --- middleware ---

type ctxUser struct{}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		hold := s.holds[r.URL.Path]
		status := s.statuses[r.URL.Path]
		s.mu.Unlock()

		if hold != nil {
			s.arrived <- r.URL.Path
			<-hold
		}
		if status != 0 {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		id, known := s.tokens[token]
		u := s.users[id]
		s.mu.Unlock()
		if !ok || !known || u == nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r).Role != model.RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- helpers ---

func (s *Server) byEmail(email string) *User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}},
	})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
