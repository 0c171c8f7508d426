package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/client"
	"github.com/atinyakov/GigBid/internal/client/shell"
	"github.com/atinyakov/GigBid/internal/config"
	"github.com/atinyakov/GigBid/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gigbid",
		Short: "Terminal client for the GigBid freelance marketplace",
		Long: `gigbid talks to the GigBid marketplace API. Without a command it starts an
interactive shell; every shell command is also available as a one-shot command.

Example usage:
  gigbid                              # interactive shell
  gigbid login buyer@example.com      # log in and keep the credential
  gigbid projects                     # list projects
  gigbid bid 12 450 "Two weeks"       # place or update a bid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *client.App) error {
				return shell.New(app, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
			})
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		passthrough("open <path>", "Open any screen by path", cobra.ExactArgs(1)),
		passthrough("home", "Show the welcome screen", cobra.NoArgs),
		passthrough("login [email]", "Log in and keep the credential", cobra.MaximumNArgs(1)),
		passthrough("signup", "Create an account", cobra.NoArgs),
		passthrough("logout", "Log out and forget the credential", cobra.NoArgs),
		passthrough("whoami", "Show the logged in account", cobra.NoArgs),
		passthrough("dashboard", "Show your dashboard", cobra.NoArgs),
		passthrough("projects", "List projects", cobra.NoArgs),
		passthrough("project <id>", "Show project details", cobra.ExactArgs(1)),
		passthrough("create", "Post a new project", cobra.NoArgs),
		passthrough("bid <id> <amount> [message...]", "Place or update your bid", cobra.MinimumNArgs(2)),
		passthrough("withdraw <id>", "Withdraw your bid", cobra.ExactArgs(1)),
		passthrough("select <id> <bidId>", "Select the winning bid", cobra.ExactArgs(2)),
		passthrough("deliver <id> <file>", "Upload the deliverable", cobra.ExactArgs(2)),
		passthrough("complete <id>", "Mark the project as completed", cobra.ExactArgs(1)),
		newVersionCmd(),
	)
	return root
}

// passthrough runs one shell command and follows the navigations it queued.
func passthrough(use, short string, args cobra.PositionalArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *client.App) error {
			sh := shell.New(app, cmd.InOrStdin(), cmd.OutOrStdout())
			if _, err := sh.Exec(cmd.Context(), append([]string{cmd.Name()}, args...)); err != nil {
				return err
			}
			return app.Drain(cmd.Context())
		})
	}
	return cmd
}

// withApp resolves the configuration, starts the client and hands it to fn.
func withApp(cmd *cobra.Command, fn func(app *client.App) error) error {
	opts, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	l := logger.New()
	if err := l.Init(opts.LogLevel); err != nil {
		return err
	}
	defer func() { _ = l.Log.Sync() }()

	app, err := client.New(opts, cmd.OutOrStdout(), l.Log)
	if err != nil {
		return err
	}
	snap := app.Start(cmd.Context())
	l.Log.Info("client started",
		zap.Stringer("app", app),
		zap.Stringer("session", snap.Status),
		zap.String("token_file", app.TokenFile()),
	)
	return fn(app)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "GigBid Client\nVersion: %s\nBuild Date: %s\n", orNA(version), orNA(buildDate))
			fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
