package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/me/tutordesk/pkg/model"
)

// validator is implemented by every request and response schema.
type validator interface {
	Validate() error
}

// decode unmarshals a response and runs its shape check. Mismatches are
// logged and returned as DECODE errors instead of being trusted.
func (c *Client) decode(resp *Response, path string, v validator) error {
	if err := resp.Decode(v); err != nil {
		c.Logger.Warn("response shape mismatch", "path", path, "error", err)
		return err
	}
	if err := v.Validate(); err != nil {
		c.Logger.Warn("response shape mismatch", "path", path, "error", err)
		return err
	}
	return nil
}

// decodeList is decode for list endpoints; every element is checked.
func decodeList[T any, PT interface {
	*T
	validator
}](c *Client, resp *Response, path string) ([]T, error) {
	var items []T
	if err := resp.Decode(&items); err != nil {
		c.Logger.Warn("response shape mismatch", "path", path, "error", err)
		return nil, err
	}
	for i := range items {
		if err := PT(&items[i]).Validate(); err != nil {
			c.Logger.Warn("response shape mismatch", "path", path, "index", i, "error", err)
			return nil, err
		}
	}
	return items, nil
}

// --- Auth ---

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.Post(ctx, "/login", req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	var out model.LoginResponse
	if err := c.decode(resp, "/login", &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Register creates an account. It never returns a token; the caller logs in
// separately.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/register", req); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// --- Student ---

// MyStats returns the signed-in student's billing, attendance and grades.
func (c *Client) MyStats(ctx context.Context) (*model.MyStats, error) {
	resp, err := c.Get(ctx, "/my-stats")
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	var out model.MyStats
	if err := c.decode(resp, "/my-stats", &out); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &out, nil
}

// Pay submits a payment for admin confirmation. Amounts under
// model.MinPaymentAmount are refused without a network call.
func (c *Client) Pay(ctx context.Context, amount model.Amount) error {
	req := model.PaymentRequest{Amount: amount}
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/student/pay", req); err != nil {
		return fmt.Errorf("pay: %w", err)
	}
	return nil
}

// MarkSelfAttendance records the student's own attendance for today. The
// server rejects it when already marked or outside the lesson window.
func (c *Client) MarkSelfAttendance(ctx context.Context) error {
	if _, err := c.Post(ctx, "/student/attendance-self", nil); err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	return nil
}

// UpdateProfile changes name, email and optionally password and photo.
func (c *Client) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := c.Put(ctx, "/update-profile", req); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// --- Admin ---

// Users lists every account with its billing totals.
func (c *Client) Users(ctx context.Context) ([]model.AdminUser, error) {
	resp, err := c.Get(ctx, "/admin/users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := decodeList[model.AdminUser](c, resp, "/admin/users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Report lists students with their full payment and attendance history.
func (c *Client) Report(ctx context.Context) ([]model.StudentReport, error) {
	resp, err := c.Get(ctx, "/admin/report")
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	reports, err := decodeList[model.StudentReport](c, resp, "/admin/report")
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return reports, nil
}

// MarkAttendance records attendance for a student.
func (c *Client) MarkAttendance(ctx context.Context, req model.MarkAttendanceRequest) error {
	if req.Lesson == 0 {
		req.Lesson = 1
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/admin/mark-attendance", req); err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	return nil
}

// SetGrade records a grade with an optional comment.
func (c *Client) SetGrade(ctx context.Context, req model.SetGradeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/admin/set-grade", req); err != nil {
		return fmt.Errorf("set grade: %w", err)
	}
	return nil
}

// PendingPayments lists payments waiting for confirmation.
func (c *Client) PendingPayments(ctx context.Context) ([]model.PendingPayment, error) {
	resp, err := c.Get(ctx, "/admin/pending-payments")
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	payments, err := decodeList[model.PendingPayment](c, resp, "/admin/pending-payments")
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}

// ConfirmPayment confirms a pending payment.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID int64) error {
	if err := requireID("payment_id", paymentID); err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/admin/confirm-payment/"+strconv.FormatInt(paymentID, 10), nil); err != nil {
		return fmt.Errorf("confirm payment %d: %w", paymentID, err)
	}
	return nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	if err := requireID("user_id", userID); err != nil {
		return err
	}
	if _, err := c.Delete(ctx, "/admin/delete-user/"+strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	return nil
}

// AddPayment records a payment on a student's behalf.
func (c *Client) AddPayment(ctx context.Context, userID int64, amount model.Amount) error {
	if err := requireID("user_id", userID); err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	path := "/admin/payment/add/" + strconv.FormatInt(userID, 10) + "?" + amountQuery(amount)
	if _, err := c.Post(ctx, path, nil); err != nil {
		return fmt.Errorf("add payment for user %d: %w", userID, err)
	}
	return nil
}

// UpdatePayment corrects the amount of an existing payment.
func (c *Client) UpdatePayment(ctx context.Context, paymentID int64, amount model.Amount) error {
	if err := requireID("payment_id", paymentID); err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	path := "/admin/payment/" + strconv.FormatInt(paymentID, 10) + "?" + amountQuery(amount)
	if _, err := c.Put(ctx, path, nil); err != nil {
		return fmt.Errorf("update payment %d: %w", paymentID, err)
	}
	return nil
}

func amountQuery(amount model.Amount) string {
	return url.Values{"amount": {strconv.FormatInt(int64(amount), 10)}}.Encode()
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return model.NewValidationError("Invalid request", model.FieldError{Field: field, Message: field + " must be positive"})
	}
	return nil
}

func requirePositive(amount model.Amount) error {
	if amount <= 0 {
		return model.NewValidationError("Invalid amount", model.FieldError{Field: "amount", Message: "amount must be positive"})
	}
	return nil
}
