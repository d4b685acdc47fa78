package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/me/tutordesk/pkg/model"
)

func withUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxUser{}, u)
}

func userFrom(r *http.Request) *User {
	u, _ := r.Context().Value(ctxUser{}).(*User)
	return u
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "email", "invalid body")
		return
	}
	u := s.UserByEmail(req.Email)
	if u == nil || u.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Email yoki parol noto'g'ri")
		return
	}
	resp := map[string]string{"access_token": s.IssueToken(u), "token_type": "bearer"}
	switch {
	case s.RoleOverride != "":
		resp["role"] = s.RoleOverride
	case s.ExplicitRole:
		resp["role"] = string(u.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "email", "invalid body")
		return
	}
	if req.Fullname == "" {
		writeValidation(w, "fullname", "field required")
		return
	}
	if s.UserByEmail(req.Email) != nil {
		writeDetail(w, http.StatusBadRequest, "Bu email allaqachon ro'yxatdan o'tgan")
		return
	}
	s.AddUser(&User{
		Fullname: req.Fullname,
		Email:    req.Email,
		Password: req.Password,
		Course:   req.Course,
		Role:     model.RoleStudent,
		Active:   true,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	s.mu.Lock()
	stats := model.MyStats{
		RemainingDebt: u.Debt,
		TotalPaid:     u.Paid,
		Attendance:    append([]model.AttendanceEntry{}, u.Attendance...),
		Grades:        append([]model.Grade{}, u.Grades...),
		Fullname:      u.Fullname,
		Email:         u.Email,
		Photo:         u.Photo,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeValidation(w, "amount", "amount must be positive")
		return
	}
	u := userFrom(r)
	s.mu.Lock()
	s.nextPay++
	s.pending[s.nextPay] = &pendingPayment{ID: s.nextPay, UserID: u.ID, Amount: req.Amount}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "payment submitted"})
}

func (s *Server) handleSelfAttendance(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range u.Attendance {
		if a.Date == s.Today {
			writeDetail(w, http.StatusBadRequest, "Bugun davomat allaqachon belgilangan")
			return
		}
	}
	u.Attendance = append(u.Attendance, model.AttendanceEntry{Date: s.Today, Lesson: 1, Status: model.AttendancePresent})
	writeJSON(w, http.StatusOK, map[string]string{"message": "attendance marked"})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "fullname", "invalid body")
		return
	}
	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Fullname, u.Email = req["fullname"], req["email"]
	if p, ok := req["password"]; ok {
		u.Password = p
	}
	if p, ok := req["photo"]; ok {
		u.Photo = p
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.AdminUser, 0, len(s.users))
	for id := int64(1); id <= s.nextID; id++ {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		out = append(out, model.AdminUser{
			ID: u.ID, Fullname: u.Fullname, Email: u.Email,
			TotalPaid: u.Paid, TotalDebt: u.Debt, IsActive: u.Active,
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.StudentReport, 0, len(s.users))
	for id := int64(1); id <= s.nextID; id++ {
		u, ok := s.users[id]
		if !ok || u.Role != model.RoleStudent {
			continue
		}
		out = append(out, model.StudentReport{
			ID: u.ID, Fullname: u.Fullname, Email: u.Email,
			Payments:   append([]model.Payment{}, u.Payments...),
			Attendance: append([]model.AttendanceEntry{}, u.Attendance...),
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "user_id", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.UserID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Foydalanuvchi topilmadi")
		return
	}
	u.Attendance = append(u.Attendance, model.AttendanceEntry{Date: req.Date, Lesson: req.Lesson, Status: req.Status})
	writeJSON(w, http.StatusOK, map[string]string{"message": "attendance saved"})
}

func (s *Server) handleSetGrade(w http.ResponseWriter, r *http.Request) {
	var req model.SetGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "grade", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.UserID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Foydalanuvchi topilmadi")
		return
	}
	u.Grades = append(u.Grades, model.Grade{Grade: req.Grade, Comment: req.Comment, Date: s.Today})
	writeJSON(w, http.StatusOK, map[string]string{"message": "grade saved"})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.pending))
	for id := int64(1); id <= s.nextPay; id++ {
		p, ok := s.pending[id]
		if !ok {
			continue
		}
		name := ""
		if u := s.users[p.UserID]; u != nil {
			name = u.Fullname
		}
		// The real API is inconsistent about the identifier's name.
		key := "id"
		if id%2 == 0 {
			key = "payment_id"
		}
		out = append(out, map[string]any{key: p.ID, "fullname": name, "amount": p.Amount})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "To'lov topilmadi")
		return
	}
	delete(s.pending, id)
	if u := s.users[p.UserID]; u != nil {
		u.Paid += p.Amount
		u.Debt = max(0, u.Debt-p.Amount)
		u.Payments = append(u.Payments, model.Payment{ID: p.ID, Amount: p.Amount, Status: "confirmed", CreatedAt: time.Now().Format(time.DateOnly)})
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "confirmed"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Foydalanuvchi topilmadi")
		return
	}
	delete(s.users, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if !ok || err != nil || amount <= 0 {
		writeDetail(w, http.StatusBadRequest, "invalid payment")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Foydalanuvchi topilmadi")
		return
	}
	s.nextPay++
	u.Paid += model.Amount(amount)
	u.Debt = max(0, u.Debt-model.Amount(amount))
	u.Payments = append(u.Payments, model.Payment{ID: s.nextPay, Amount: model.Amount(amount), Status: "confirmed"})
	writeJSON(w, http.StatusOK, map[string]string{"message": "added"})
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	amount, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("amount")), 10, 64)
	if !ok || err != nil || amount <= 0 {
		writeDetail(w, http.StatusBadRequest, "invalid payment")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		for i := range u.Payments {
			if u.Payments[i].ID == id {
				u.Paid += model.Amount(amount) - u.Payments[i].Amount
				u.Payments[i].Amount = model.Amount(amount)
				writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
				return
			}
		}
	}
	writeDetail(w, http.StatusNotFound, "To'lov topilmadi")
}
