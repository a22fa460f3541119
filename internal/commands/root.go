// Package commands builds the bilancioctl command tree.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

// RootOptions holds the persistent flags. Empty values fall back to the
// environment configuration.
type RootOptions struct {
	Backend  string
	DataDir  string
	User     string
	Today    string
	Format   string // "text" | "json"
	LogLevel string
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bilancioctl",
		Short: "Family budget forecasts, alerts and recurring transactions",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			if opts.Backend != "" && !backend.BackendType(opts.Backend).IsValid() {
				return fmt.Errorf("invalid data backend %q: must be one of %v", opts.Backend, backend.GetBackendTypeStrings())
			}
			if opts.Today != "" {
				if _, err := core.ParseDate(opts.Today); err != nil {
					return fmt.Errorf("invalid --today: %w", err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "",
		fmt.Sprintf("data backend (%s), default $DATA_BACKEND", strings.Join(backend.GetBackendTypeStrings(), "|")))
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory, default $DATA_DIRECTORY")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "owner of the data, default $BILANCIO_USER")
	cmd.PersistentFlags().StringVar(&opts.Today, "today", "", "evaluate as of this day (YYYY-MM-DD) instead of the clock")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level on stderr (debug|info|warn|error)")

	cmd.AddCommand(newForecastCommand(opts))
	cmd.AddCommand(newAlertsCommand(opts))
	cmd.AddCommand(newSummaryCommand(opts))
	cmd.AddCommand(newRecurringCommand(opts))

	return cmd
}

// config merges the flags over the environment configuration.
func (o *RootOptions) config() (*config.Config, error) {
	cfg := config.Load()
	if o.Backend != "" {
		cfg.DataBackend = o.Backend
	}
	if o.DataDir != "" {
		cfg.DataDirectory = o.DataDir
	}
	if o.User != "" {
		cfg.User = o.User
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession returns a loaded session. Logs go to stderr so that stdout
// carries only command output.
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command) (*services.Session, func(), error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: applog.ParseLevel(o.LogLevel),
	})).With(applog.FieldComponent, applog.ComponentCLI)

	var clock core.Clock
	if o.Today != "" {
		day, _ := core.ParseDate(o.Today)
		clock = core.FixedClock{Day: day}
	}

	session, cleanup, err := cli.OpenSession(ctx, logger, cfg, clock)
	if err != nil {
		return nil, nil, err
	}
	if err := session.Load(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return session, cleanup, nil
}

func (o *RootOptions) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
