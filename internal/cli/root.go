// Package cli implements the tutordesk command line.
package cli

import (
	"github.com/spf13/cobra"
)

// routeAnnotation marks a command as a guarded view. Subcommands inherit the
// route of their nearest annotated ancestor.
const routeAnnotation = "tutordesk/route"

// NewRootCmd creates the root cobra command for the tutordesk CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tutordesk",
		Short: "tutordesk: the tutoring center from your terminal",
		Long: "tutordesk signs students and administrators in to the tutoring-center API,\n" +
			"shows balances, attendance and grades, and runs the back office.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.enter(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.api, "api", "", "API base URL (or TUTORDESK_API env)")
	pf.StringVar(&a.flags.sessionFile, "session-file", "", "Session file (default ~/.tutordesk/session.json)")
	pf.BoolVar(&a.flags.ephemeral, "ephemeral", false, "Keep the session in memory for this invocation only")
	pf.StringVar(&a.flags.config, "config", "", "Config file (default ~/.tutordesk/config.yaml)")
	pf.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		a.newLoginCmd(),
		a.newRegisterCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newStatsCmd(),
		a.newPayCmd(),
		a.newAttendCmd(),
		a.newProfileCmd(),
		a.newAdminCmd(),
	)
	a.routeErrors(root)

	return root
}

// routeOf returns the guarded route of cmd, or "" for unguarded commands.
func routeOf(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if r, ok := c.Annotations[routeAnnotation]; ok {
			return r
		}
	}
	return ""
}

func guarded(route string) map[string]string {
	return map[string]string{routeAnnotation: route}
}
