package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"advisor/internal/events"
	"advisor/internal/logging"
	"advisor/internal/syncer"
	"advisor/internal/timeline"
	"advisor/internal/tui"
)

// chatOptions carries chat flag overrides on top of the config file.
type chatOptions struct {
	theme         string
	timestamps    bool
	timestampsSet bool
	noAutoSync    bool
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var chat chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat surface",
		Long:  "Open the interactive chat surface. This is also what running advisor with no arguments does.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chat.timestampsSet = cmd.Flags().Changed("timestamps")
			return runChat(cmd.Context(), opts, chat)
		},
	}

	cmd.Flags().StringVar(&chat.theme, "theme", "", "color theme (default, high-contrast)")
	cmd.Flags().BoolVar(&chat.timestamps, "timestamps", false, "show message timestamps")
	cmd.Flags().BoolVar(&chat.noAutoSync, "no-auto-sync", false, "skip the startup sync")

	return cmd
}

func runChat(ctx context.Context, opts *rootOptions, chat chatOptions) error {
	if !hasTTY() {
		return fmt.Errorf("chat needs an interactive terminal")
	}
	cfg := opts.cfg

	// Log to a file from here on. Anything written to stderr while the
	// TUI owns the screen would tear it.
	logFile, err := logging.OpenFile(cfg.LogFilePath())
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       logFile,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	sess, cleanup, err := requireLogin(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	publisher := events.NewInMemoryPublisher()
	defer publisher.Close()

	tl := timeline.NewController(sess.Client(), sess, publisher,
		timeline.WithPageSize(cfg.Timeline.PageSize),
		timeline.WithScrollThreshold(cfg.Timeline.ScrollThreshold),
	)

	orch := syncer.New(syncer.Config{
		PollInterval:    cfg.Sync.PollInterval,
		AutoSyncDelay:   cfg.Sync.AutoDelay,
		MaxSyncDuration: cfg.Sync.MaxDuration,
	}, sess.Client(), sess, publisher)
	defer orch.Close()

	tuiCfg := tui.Config{
		Theme:          cfg.TUI.Theme,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
		AutoSync:       cfg.Sync.Auto && !chat.noAutoSync,
	}
	if chat.theme != "" {
		tuiCfg.Theme = chat.theme
	}
	if chat.timestampsSet {
		tuiCfg.ShowTimestamps = chat.timestamps
	}

	return tui.Run(tuiCfg, tui.Deps{
		Session:  sess,
		Timeline: tl,
		Syncer:   orch,
		Events:   publisher,
	})
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
