package model

import "strings"

// Role is the access level a session was granted.
type Role string

const (
	// RoleStudent is a learner using the self-service portal.
	RoleStudent Role = "student"
	// RoleAdmin runs the back office: payments, attendance, grades.
	RoleAdmin Role = "admin"
)

// ParseRole normalizes s (trimmed, case-folded) and reports whether it names
// a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// String returns the role's wire value.
func (r Role) String() string { return string(r) }

// AdminUser is one row of GET /admin/users.
type AdminUser struct {
	ID        int64  `json:"id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	TotalPaid Amount `json:"total_paid"`
	TotalDebt Amount `json:"total_debt"`
	IsActive  bool   `json:"is_active"`
}

// Validate rejects rows the back office cannot act on.
func (u *AdminUser) Validate() error {
	if u.ID <= 0 {
		return NewDecodeError("admin user: missing id")
	}
	return nil
}

// StudentReport is one row of GET /admin/report: a student with the full
// payment and attendance history the server keeps for them.
type StudentReport struct {
	ID         int64             `json:"id"`
	Fullname   string            `json:"fullname"`
	Email      string            `json:"email"`
	Payments   []Payment         `json:"payments"`
	Attendance []AttendanceEntry `json:"attendance"`
}

func (s *StudentReport) Validate() error {
	if s.ID <= 0 {
		return NewDecodeError("student report: missing id")
	}
	return nil
}

// LastPayment returns the most recent payment, or nil when there is none.
func (s *StudentReport) LastPayment() *Payment {
	if len(s.Payments) == 0 {
		return nil
	}
	return &s.Payments[len(s.Payments)-1]
}

// FilterReportsByName returns the reports whose fullname contains term,
// ignoring case. An empty term returns reports unchanged.
func FilterReportsByName(reports []StudentReport, term string) []StudentReport {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return reports
	}
	var out []StudentReport
	for _, r := range reports {
		if strings.Contains(strings.ToLower(r.Fullname), term) {
			out = append(out, r)
		}
	}
	return out
}

// FilterUsersByName is FilterReportsByName for the /admin/users listing.
func FilterUsersByName(users []AdminUser, term string) []AdminUser {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}
	var out []AdminUser
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Fullname), term) {
			out = append(out, u)
		}
	}
	return out
}
