// Command molecheck is the terminal client for the molecheck skin-lesion
// triage service. Without a subcommand it starts an interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/client/cli"
	"github.com/dmitrijs2005/molecheck/internal/client/config"
	"github.com/dmitrijs2005/molecheck/internal/logging"
	"github.com/spf13/cobra"
)

// reportedError marks errors the App already printed to the user.
type reportedError struct{ err error }

func (r reportedError) Error() string { return r.err.Error() }
func (r reportedError) Unwrap() error { return r.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var reported reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(1)
}

type globalFlags struct {
	configFile string
	apiURL     string
	timeout    time.Duration
	storePath  string
	logLevel   string
}

// newApp resolves the config (defaults, file, env, then flags the user set)
// and creates the App. The caller must Close it.
func newApp(cmd *cobra.Command, gf *globalFlags, opts ...cli.Option) (*cli.App, error) {
	flags := cmd.Flags()
	cfg, err := config.Load(config.Options{
		File: gf.configFile,
		Overrides: func(c *config.Config) {
			if flags.Changed("api") {
				c.APIBaseURL = gf.apiURL
			}
			if flags.Changed("timeout") {
				c.RequestTimeout = gf.timeout
			}
			if flags.Changed("store") {
				c.StorePath = gf.storePath
			}
			if flags.Changed("log-level") {
				c.LogLevel = gf.logLevel
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	logger, err := logging.NewTextLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	a, err := cli.NewApp(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh App. Errors from fn were already shown to
// the user.
func withApp(gf *globalFlags, fn func(ctx context.Context, a *cli.App) error, opts ...cli.Option) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd, gf, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(cmd.Context(), a); err != nil {
			return reportedError{err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:           "molecheck",
		Short:         "Skin-lesion triage from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			a.Run(ctx)
			return nil
		}),
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&gf.configFile, "config", "c", "", "config file (toml, yaml or json); defaults to $"+config.EnvConfigFile)
	pf.StringVarP(&gf.apiURL, "api", "a", config.DefaultAPIBaseURL, "backend base URL")
	pf.DurationVarP(&gf.timeout, "timeout", "t", config.DefaultRequestTimeout, "per-request timeout")
	pf.StringVarP(&gf.storePath, "store", "s", config.DefaultStorePath, "session database path")
	pf.StringVar(&gf.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")

	root.AddCommand(
		newRegisterCmd(gf),
		newLoginCmd(gf),
		newLogoutCmd(gf),
		newWhoamiCmd(gf),
		newDiagnoseCmd(gf),
		newHistoryCmd(gf),
		newDeleteCmd(gf),
		newLabelsCmd(gf),
	)
	return root
}

func newRegisterCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.Register(ctx)
		}),
	}
}

func newLoginCmd(gf *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in; prompts for anything not given",
		Args:  cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.Login(ctx, email, password)
		}),
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.Logout(ctx)
		}),
	}
}

func newWhoamiCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.Whoami(ctx)
		}),
	}
}

func newDiagnoseCmd(gf *globalFlags) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "diagnose <image>",
		Short: "Classify a lesion photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(gf, func(ctx context.Context, a *cli.App) error {
				return a.Diagnose(ctx, args[0], save)
			}, cli.WithOneShot())(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the result in your history")
	return cmd
}

func newHistoryCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "List saved diagnoses, newest first",
		Args:    cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.History(ctx)
		}),
	}
}

func newDeleteCmd(gf *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid diagnosis id %q", args[0])
			}
			var opts []cli.Option
			if yes {
				opts = append(opts, cli.WithConfirmer(cli.AlwaysConfirm{}))
			}
			return withApp(gf, func(ctx context.Context, a *cli.App) error {
				return a.Delete(ctx, id, nil)
			}, opts...)(cmd, args)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newLabelsCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Describe the lesion classes the model reports",
		Args:  cobra.NoArgs,
		RunE: withApp(gf, func(ctx context.Context, a *cli.App) error {
			return a.Labels(ctx)
		}),
	}
}
