// Package cli provides the advisor command line interface.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"advisor/internal/api"
	"advisor/internal/config"
	"advisor/internal/logging"
	"advisor/internal/session"
)

// rootOptions carries the persistent flag values shared by every command.
type rootOptions struct {
	configFile string
	serverURL  string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

// Execute runs the CLI. Invoked with no subcommand it opens the chat
// surface.
func Execute(version string) error {
	return ExecuteContext(context.Background(), version)
}

// ExecuteContext runs the CLI under a caller-owned context, so signals
// cancel in-flight requests and polling loops.
func ExecuteContext(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "advisor",
		Short:         "Chat with your advisor assistant",
		Long:          "advisor is a terminal client for the advisor assistant: chat, sync your Gmail and HubSpot data, and review background tasks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, chatOptions{})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/advisor/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "", "advisor backend URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging format (json, console)")

	cmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newChatCmd(opts),
		newSyncCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newTasksCmd(opts),
		newInstructCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// setup loads configuration, applies flag overrides, and initializes
// logging. It runs once before any command body.
func (o *rootOptions) setup() error {
	loader := config.NewLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if o.serverURL != "" {
		cfg.Server.URL = o.serverURL
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	o.cfg = cfg
	return nil
}

// openSession builds the API client and restores any persisted login.
// The returned cleanup closes the credential store.
func openSession(ctx context.Context, cfg *config.Config) (*session.Session, func(), error) {
	client := api.New(cfg.Server.URL, api.WithTimeout(cfg.Server.Timeout))

	store, err := session.OpenStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	sess := session.New(client, store)
	if err := sess.Restore(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
	}
	return sess, cleanup, nil
}

// requireLogin is openSession plus a readiness check, for commands that
// cannot do anything while logged out.
func requireLogin(ctx context.Context, cfg *config.Config) (*session.Session, func(), error) {
	sess, cleanup, err := openSession(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if !sess.Ready() {
		cleanup()
		return nil, nil, fmt.Errorf("not signed in - run: advisor login")
	}
	return sess, cleanup, nil
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
