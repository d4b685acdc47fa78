package cli

import (
	"fmt"

	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/pkg/model"
	"github.com/spf13/cobra"
)

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "stats",
		Short:       "Show your balance, attendance and grades",
		Args:        cobra.NoArgs,
		Annotations: guarded(string(guard.RouteStudentDashboard)),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.MyStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", stats.Fullname, stats.Email)
			fmt.Fprintf(out, "  Paid:      %s\n", money(stats.TotalPaid))
			fmt.Fprintf(out, "  Remaining: %s\n", money(stats.RemainingDebt))
			if !stats.HasDebt() {
				fmt.Fprintln(out, "  Fully paid")
			}

			fmt.Fprintln(out, "Attendance:")
			printAttendance(out, stats.Attendance)

			fmt.Fprintln(out, "Grades:")
			if len(stats.Grades) == 0 {
				fmt.Fprintln(out, "  No grades yet.")
			}
			for _, g := range stats.Grades {
				line := "  " + g.Grade
				if g.Date != "" {
					line += "  " + g.Date
				}
				if g.Comment != "" {
					line += "  " + g.Comment
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func (a *app) newPayCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "pay <amount>",
		Short:       fmt.Sprintf("Submit a payment (minimum %s)", money(model.MinPaymentAmount)),
		Long:        "Submit a payment toward your balance. An administrator confirms it before it counts.",
		Args:        cobra.ExactArgs(1),
		Annotations: guarded(string(guard.RouteStudentDashboard)),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := model.ParseAmount(args[0])
			if err != nil {
				return err
			}
			if err := a.client.Pay(cmd.Context(), amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment of %s submitted, waiting for confirmation\n", money(amount))
			return nil
		},
	}
}

func (a *app) newAttendCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "attend",
		Short:       "Mark yourself present for today",
		Args:        cobra.NoArgs,
		Annotations: guarded(string(guard.RouteStudentDashboard)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.MarkSelfAttendance(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Attendance recorded for today")
			return nil
		},
	}
}

func (a *app) newProfileCmd() *cobra.Command {
	var req model.UpdateProfileRequest

	cmd := &cobra.Command{
		Use:         "profile",
		Short:       "Update your name, email, password or photo",
		Long:        "Update your profile. Name and email keep their current values unless given; password and photo change only when given.",
		Args:        cobra.NoArgs,
		Annotations: guarded(string(guard.RouteStudentDashboard)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if req.Fullname == "" || req.Email == "" {
				stats, err := a.client.MyStats(ctx)
				if err != nil {
					return err
				}
				if req.Fullname == "" {
					req.Fullname = stats.Fullname
				}
				if req.Email == "" {
					req.Email = stats.Email
				}
			}
			if err := a.client.UpdateProfile(ctx, req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Fullname, "fullname", "", "New full name")
	f.StringVar(&req.Email, "email", "", "New email")
	f.StringVar(&req.Password, "password", "", "New password")
	f.StringVar(&req.Photo, "photo", "", "Photo URL")
	return cmd
}
