package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/me/tutordesk/internal/apiclient"
	"github.com/me/tutordesk/internal/config"
	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/internal/session"
	"github.com/me/tutordesk/pkg/model"
	"github.com/spf13/cobra"
)

// app holds one invocation's flags and the components built from them.
type app struct {
	flags struct {
		api         string
		sessionFile string
		ephemeral   bool
		config      string
		debug       bool
		logLevel    string
		logFormat   string
	}

	cfg     config.ClientConfig
	logger  *slog.Logger
	store   session.Store
	client  *apiclient.Client
	guard   *guard.Guard
	session model.Session
}

// setup resolves configuration and wires the session store, API client and
// guard. Flags win over config file and environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(a.flags.config)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIURL = a.flags.api
	}
	if flags.Changed("session-file") {
		cfg.SessionFile = a.flags.sessionFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.flags.logFormat
	}
	if a.flags.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	switch {
	case a.flags.ephemeral:
		a.store = session.NewMemoryStore()
	case cfg.SessionFile != "":
		a.store = session.NewFileStore(cfg.SessionFile)
	default:
		path, err := session.DefaultPath()
		if err != nil {
			return err
		}
		a.store = session.NewFileStore(path)
	}

	a.client = apiclient.New(cfg.APIURL, a.store, a.logger)
	if cfg.Timeout > 0 {
		a.client.HTTPClient.Timeout = cfg.Timeout
	}
	a.guard = guard.New(a.store, guard.Route(cfg.EntryRoute), a.logger)
	return nil
}

// enter runs the guard for commands bound to a protected view. A redirect
// aborts the command before it makes any API call.
func (a *app) enter(cmd *cobra.Command) error {
	route := routeOf(cmd)
	if route == "" {
		return nil
	}
	d, err := a.guard.Enter(cmd.Context(), guard.Route(route))
	if err != nil {
		return err
	}
	if !d.Mount {
		return a.redirectError(d)
	}
	a.session = d.Session
	return nil
}

func (a *app) redirectError(d guard.Decision) error {
	switch d.Target {
	case guard.RouteStudentDashboard:
		return fmt.Errorf("this command needs an admin account (signed in as %s)", d.Session.Role)
	case guard.RouteRegister:
		return errors.New("not signed in: run 'tutordesk register' or 'tutordesk login'")
	default:
		return errors.New("not signed in: run 'tutordesk login'")
	}
}

// routeErrors wraps every command so failures pass through the guard first.
// Session-ending errors become a sign-in prompt; API errors become the text
// the server sent.
func (a *app) routeErrors(cmd *cobra.Command) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			return a.present(c.Context(), run(c, args))
		}
	}
	for _, sub := range cmd.Commands() {
		a.routeErrors(sub)
	}
}

func (a *app) present(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := a.guard.Recover(ctx, err); ok {
		return errors.New("session expired: run 'tutordesk login' to sign in again")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		a.logger.Debug("request failed", "error", err)
		return errors.New(apiErr.UserMessage("request failed"))
	}
	return err
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isattyTerminal(f.Fd())
}
