package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/pkg/model"
	"github.com/spf13/cobra"
)

func (a *app) newLoginCmd() *cobra.Command {
	var req model.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the tutoring center",
		Long:  "Sign in with email and password. Missing values are read from standard input.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			if err := p.fill(
				promptField{"Email: ", &req.Email},
				promptField{"Password: ", &req.Password},
			); err != nil {
				return err
			}
			d, err := a.login(cmd.Context(), req, "")
			if err != nil {
				return err
			}
			printSignedIn(cmd.OutOrStdout(), d)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (read from stdin if omitted)")
	return cmd
}

// login signs in and stores the session. A 401 here means bad credentials,
// not an expired session, so it is reported before the guard sees it.
func (a *app) login(ctx context.Context, req model.LoginRequest, fallbackName string) (guard.Decision, error) {
	resp, err := a.client.Login(ctx, req)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == model.KindAuth {
			return guard.Decision{}, errors.New(apiErr.UserMessage("invalid email or password"))
		}
		return guard.Decision{}, err
	}
	return a.guard.CompleteLogin(ctx, resp, fallbackName)
}

func printSignedIn(w io.Writer, d guard.Decision) {
	name := d.Session.DisplayName
	if name == "" {
		name = "user"
	}
	fmt.Fprintf(w, "Signed in as %s (%s)\n", name, d.Session.Role)
	if d.Target == guard.RouteAdminDashboard {
		fmt.Fprintln(w, "Next: tutordesk admin users")
	} else {
		fmt.Fprintln(w, "Next: tutordesk stats")
	}
}

func (a *app) newRegisterCmd() *cobra.Command {
	var (
		req    model.RegisterRequest
		signIn bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			if err := p.fill(
				promptField{"Full name: ", &req.Fullname},
				promptField{"Email: ", &req.Email},
				promptField{"Password: ", &req.Password},
			); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.client.Register(ctx, req); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registered %s\n", req.Email)
			if !signIn {
				fmt.Fprintln(out, "Next: tutordesk login")
				return nil
			}
			d, err := a.login(ctx, model.LoginRequest{Email: req.Email, Password: req.Password}, req.Fullname)
			if err != nil {
				return err
			}
			printSignedIn(out, d)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Fullname, "fullname", "", "Full name (prompted if omitted)")
	f.StringVar(&req.Email, "email", "", "Email (prompted if omitted)")
	f.StringVar(&req.Password, "password", "", "Password (read from stdin if omitted)")
	f.StringVar(&req.Course, "course", "", "Course to enroll in")
	f.BoolVar(&signIn, "login", false, "Sign in right after registering")
	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.guard.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.guard.Enter(cmd.Context(), guard.RouteRoot)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if d.State == guard.StateRedirecting {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			fmt.Fprintf(out, "Name:    %s\n", d.Session.DisplayName)
			fmt.Fprintf(out, "Role:    %s\n", d.Session.Role)
			if d.Claims.Subject != "" {
				fmt.Fprintf(out, "User ID: %s\n", d.Claims.Subject)
			}
			if d.Claims.HasExpiry() {
				fmt.Fprintf(out, "Expires: %s\n", humanize.Time(d.Claims.Expiry))
			}
			return nil
		},
	}
}
