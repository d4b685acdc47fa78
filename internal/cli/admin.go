package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/pkg/model"
	"github.com/spf13/cobra"
)

func (a *app) newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "admin",
		Short:       "Back-office commands (admin accounts only)",
		Annotations: guarded(string(guard.RouteAdminDashboard)),
	}
	cmd.AddCommand(
		a.newUsersCmd(),
		a.newReportCmd(),
		a.newHistoryCmd(),
		a.newMarkAttendanceCmd(),
		a.newGradeCmd(),
		a.newPendingCmd(),
		a.newConfirmCmd(),
		a.newDeleteCmd(),
		a.newAddPaymentCmd(),
		a.newUpdatePaymentCmd(),
	)
	return cmd
}

func (a *app) newUsersCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.client.Users(cmd.Context())
			if err != nil {
				return err
			}
			users = model.FilterUsersByName(users, search)
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-24s  %-28s  %16s  %16s  %s\n", "ID", "NAME", "EMAIL", "PAID", "DEBT", "ACTIVE")
			for _, u := range users {
				fmt.Fprintf(out, "%-6d  %-24s  %-28s  %16s  %16s  %t\n",
					u.ID, u.Fullname, u.Email, money(u.TotalPaid), money(u.TotalDebt), u.IsActive)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only show users whose name contains this text")
	return cmd
}

func (a *app) newReportCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize payments and attendance per student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := a.client.Report(cmd.Context())
			if err != nil {
				return err
			}
			reports = model.FilterReportsByName(reports, search)
			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No students found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-24s  %-8s  %-8s  %s\n", "ID", "NAME", "PAYMENTS", "LESSONS", "LAST PAYMENT")
			for _, r := range reports {
				last := "-"
				if p := r.LastPayment(); p != nil {
					last = money(p.Amount)
				}
				fmt.Fprintf(out, "%-6d  %-24s  %-8d  %-8d  %s\n", r.ID, r.Fullname, len(r.Payments), len(r.Attendance), last)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only show students whose name contains this text")
	return cmd
}

func (a *app) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user_id>",
		Short: "Show one student's payments and attendance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			reports, err := a.client.Report(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range reports {
				if r.ID != id {
					continue
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s <%s>\n", r.Fullname, r.Email)
				fmt.Fprintln(out, "Payments:")
				if len(r.Payments) == 0 {
					fmt.Fprintln(out, "  No payments.")
				}
				for _, p := range r.Payments {
					fmt.Fprintf(out, "  #%-6d  %16s  %-10s  %s\n", p.ID, money(p.Amount), p.Status, p.CreatedAt)
				}
				fmt.Fprintln(out, "Attendance:")
				printAttendance(out, r.Attendance)
				return nil
			}
			return fmt.Errorf("no student with id %d", id)
		},
	}
}

func (a *app) newMarkAttendanceCmd() *cobra.Command {
	var req model.MarkAttendanceRequest

	cmd := &cobra.Command{
		Use:   "attendance <user_id> <present|absent>",
		Short: "Record a student's attendance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			status, ok := model.ParseAttendanceStatus(args[1])
			if !ok {
				return fmt.Errorf("invalid status %q: use present or absent", args[1])
			}
			req.UserID, req.Status = id, status
			if req.Date == "" {
				req.Date = time.Now().Format(time.DateOnly)
			}
			if err := a.client.MarkAttendance(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked user %d %s on %s\n", id, attendanceLabel(status), req.Date)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Date, "date", "", "Lesson date, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&req.Lesson, "lesson", 0, "Lesson number (default 1)")
	return cmd
}

func (a *app) newGradeCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "grade <user_id> <grade>",
		Short: "Give a student a grade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			req := model.SetGradeRequest{UserID: id, Grade: args[1], Comment: comment}
			if err := a.client.SetGrade(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Grade %s saved for user %d\n", req.Grade, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "Comment shown with the grade")
	return cmd
}

func (a *app) newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List payments waiting for confirmation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := a.client.PendingPayments(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending payments.")
				return nil
			}
			fmt.Fprintf(out, "%-8s  %-24s  %16s\n", "PAYMENT", "NAME", "AMOUNT")
			for _, p := range pending {
				fmt.Fprintf(out, "%-8d  %-24s  %16s\n", p.ID, p.Fullname, money(p.Amount))
			}
			return nil
		},
	}
}

func (a *app) newConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <payment_id>",
		Short: "Confirm a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("payment id", args[0])
			if err != nil {
				return err
			}
			if err := a.client.ConfirmPayment(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment %d confirmed\n", id)
			return nil
		},
	}
}

func (a *app) newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := newPrompter(cmd).confirm(fmt.Sprintf("Delete user %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("not deleted: pass --yes to confirm")
				}
			}
			if err := a.client.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d deleted\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (a *app) newAddPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-payment <user_id> <amount>",
		Short: "Record a payment on a student's behalf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			amount, err := model.ParseAmount(args[1])
			if err != nil {
				return err
			}
			if err := a.client.AddPayment(cmd.Context(), id, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s for user %d\n", money(amount), id)
			return nil
		},
	}
}

func (a *app) newUpdatePaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-payment <payment_id> <amount>",
		Short: "Correct the amount of a recorded payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("payment id", args[0])
			if err != nil {
				return err
			}
			amount, err := model.ParseAmount(args[1])
			if err != nil {
				return err
			}
			if err := a.client.UpdatePayment(cmd.Context(), id, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment %d set to %s\n", id, money(amount))
			return nil
		},
	}
}
