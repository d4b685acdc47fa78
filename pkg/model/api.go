package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// MinPaymentAmount is the smallest payment a student may submit, in so'm.
const MinPaymentAmount Amount = 1000

// Amount is a sum of money in so'm. The API sends it as an integer or as an
// integral float, so both decode.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*a = Amount(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount %s: %w", b, err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("amount %s: not a whole number", b)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("amount %s: out of range", b)
	}
	*a = Amount(f)
	return nil
}

// ParseAmount parses user input such as "500000" or "500 000".
func ParseAmount(s string) (Amount, error) {
	s = strings.NewReplacer(" ", "", ",", "", "_", "").Replace(strings.TrimSpace(s))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewValidationError("Invalid amount", FieldError{Field: "amount", Message: "amount must be a whole number"})
	}
	return Amount(n), nil
}

// --- Auth ---

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	var fields []FieldError
	if strings.TrimSpace(r.Email) == "" {
		fields = append(fields, FieldError{Field: "email", Message: "email is required"})
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		return NewValidationError("Invalid login", fields...)
	}
	return nil
}

// LoginResponse is what POST /login returns. Role is optional; when absent
// the role comes from the token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Role        string `json:"role,omitempty"`
}

func (r *LoginResponse) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return NewDecodeError("login response: missing access_token")
	}
	return nil
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Course   string `json:"course,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	var fields []FieldError
	if strings.TrimSpace(r.Fullname) == "" {
		fields = append(fields, FieldError{Field: "fullname", Message: "full name is required"})
	}
	if err := validateEmail(r.Email); err != nil {
		fields = append(fields, *err)
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		return NewValidationError("Invalid registration", fields...)
	}
	return nil
}

// --- Student ---

// AttendanceEntry is one lesson in a student's attendance history.
type AttendanceEntry struct {
	Date   string `json:"date"`
	Lesson int    `json:"lesson,omitempty"`
	Status string `json:"status"`
}

// Present reports whether the student attended.
func (e AttendanceEntry) Present() bool {
	return e.Status == AttendancePresent
}

// Grade is one grade an admin gave a student.
type Grade struct {
	Grade   string `json:"grade"`
	Comment string `json:"comment,omitempty"`
	Date    string `json:"date,omitempty"`
}

// UnmarshalJSON accepts the grade as a string or a number.
func (g *Grade) UnmarshalJSON(b []byte) error {
	var raw struct {
		Grade   json.RawMessage `json:"grade"`
		Comment string          `json:"comment"`
		Date    string          `json:"date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	g.Comment, g.Date = raw.Comment, raw.Date
	g.Grade = strings.Trim(string(bytes.TrimSpace(raw.Grade)), `"`)
	if g.Grade == "null" {
		g.Grade = ""
	}
	return nil
}

// Payment is one payment as the admin report lists it.
type Payment struct {
	ID        int64  `json:"id"`
	Amount    Amount `json:"amount"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// MyStats is GET /my-stats.
type MyStats struct {
	RemainingDebt Amount            `json:"remaining_debt"`
	TotalPaid     Amount            `json:"total_paid"`
	Attendance    []AttendanceEntry `json:"attendance"`
	Grades        []Grade           `json:"grades"`
	Fullname      string            `json:"fullname"`
	Email         string            `json:"email"`
	Photo         string            `json:"photo,omitempty"`
}

func (s *MyStats) Validate() error {
	if s.Fullname == "" && s.Email == "" {
		return NewDecodeError("my-stats: neither fullname nor email present")
	}
	return nil
}

// HasDebt reports whether the student still owes money.
func (s *MyStats) HasDebt() bool {
	return s.RemainingDebt > 0
}

// PaymentRequest is the body of POST /student/pay.
type PaymentRequest struct {
	Amount Amount `json:"amount"`
}

func (r *PaymentRequest) Validate() error {
	if r.Amount < MinPaymentAmount {
		return NewValidationError("Invalid payment", FieldError{
			Field:   "amount",
			Message: fmt.Sprintf("amount must be at least %d", MinPaymentAmount),
		})
	}
	return nil
}

// UpdateProfileRequest is the body of PUT /update-profile. Password and Photo
// are omitted from the wire when empty.
type UpdateProfileRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

func (r *UpdateProfileRequest) Validate() error {
	var fields []FieldError
	if strings.TrimSpace(r.Fullname) == "" {
		fields = append(fields, FieldError{Field: "fullname", Message: "full name is required"})
	}
	if err := validateEmail(r.Email); err != nil {
		fields = append(fields, *err)
	}
	if len(fields) > 0 {
		return NewValidationError("Invalid profile", fields...)
	}
	return nil
}

// --- Admin ---

// Attendance status values, in the server's vocabulary.
const (
	AttendancePresent = "keldi"
	AttendanceAbsent  = "kelmadi"
)

// ParseAttendanceStatus accepts present/absent or the server's own words.
func ParseAttendanceStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "p", AttendancePresent:
		return AttendancePresent, true
	case "absent", "a", AttendanceAbsent:
		return AttendanceAbsent, true
	default:
		return "", false
	}
}

// MarkAttendanceRequest is the body of POST /admin/mark-attendance.
type MarkAttendanceRequest struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
	Status string `json:"status"`
	Lesson int    `json:"lesson,omitempty"`
}

func (r *MarkAttendanceRequest) Validate() error {
	var fields []FieldError
	if r.UserID <= 0 {
		fields = append(fields, FieldError{Field: "user_id", Message: "user is required"})
	}
	if !isISODate(r.Date) {
		fields = append(fields, FieldError{Field: "date", Message: "date must be YYYY-MM-DD"})
	}
	if r.Status != AttendancePresent && r.Status != AttendanceAbsent {
		fields = append(fields, FieldError{Field: "status", Message: "status must be present or absent"})
	}
	if r.Lesson < 0 {
		fields = append(fields, FieldError{Field: "lesson", Message: "lesson must be positive"})
	}
	if len(fields) > 0 {
		return NewValidationError("Invalid attendance", fields...)
	}
	return nil
}

// SetGradeRequest is the body of POST /admin/set-grade.
type SetGradeRequest struct {
	UserID  int64  `json:"user_id"`
	Grade   string `json:"grade"`
	Comment string `json:"comment"`
}

func (r *SetGradeRequest) Validate() error {
	var fields []FieldError
	if r.UserID <= 0 {
		fields = append(fields, FieldError{Field: "user_id", Message: "user is required"})
	}
	if strings.TrimSpace(r.Grade) == "" {
		fields = append(fields, FieldError{Field: "grade", Message: "grade is required"})
	}
	if len(fields) > 0 {
		return NewValidationError("Invalid grade", fields...)
	}
	return nil
}

// PendingPayment is one row of GET /admin/pending-payments. The server
// names the identifier either id or payment_id.
type PendingPayment struct {
	ID       int64  `json:"id"`
	Fullname string `json:"fullname"`
	Amount   Amount `json:"amount"`
}

func (p *PendingPayment) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        *int64 `json:"id"`
		PaymentID *int64 `json:"payment_id"`
		Fullname  string `json:"fullname"`
		Amount    Amount `json:"amount"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Fullname, p.Amount = raw.Fullname, raw.Amount
	switch {
	case raw.ID != nil:
		p.ID = *raw.ID
	case raw.PaymentID != nil:
		p.ID = *raw.PaymentID
	}
	return nil
}

func (p *PendingPayment) Validate() error {
	if p.ID <= 0 {
		return NewDecodeError("pending payment: missing id and payment_id")
	}
	return nil
}

func validateEmail(s string) *FieldError {
	s = strings.TrimSpace(s)
	if s == "" {
		return &FieldError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return &FieldError{Field: "email", Message: "email is not valid"}
	}
	return nil
}

func isISODate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
