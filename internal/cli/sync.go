package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"advisor/internal/api"
	"advisor/internal/models"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		full bool
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "sync [gmail|hubspot|all]",
		Short: "Import data from a linked provider",
		Long:  "Ask the backend to import provider data. By default only the last month is fetched; --full imports everything.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			providers, err := resolveProviders(args, sess.User())
			if err != nil {
				return err
			}

			mode := models.SyncModeRecent
			if full {
				mode = models.SyncModeFull
			}

			client := sess.Client()
			for _, provider := range providers {
				if err := client.StartSync(ctx, provider, mode); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s sync started (%s)\n", provider.DisplayName(), mode)
			}

			if !wait {
				return nil
			}
			return waitForSync(ctx, cmd, client, providers, opts.cfg.Sync.PollInterval)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "import all history, not just the last month")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the import finishes")

	return cmd
}

// resolveProviders maps the positional argument to providers, defaulting
// to everything the user has linked.
func resolveProviders(args []string, user *models.User) ([]models.Provider, error) {
	if len(args) > 0 && !strings.EqualFold(args[0], "all") {
		provider, err := models.ParseProvider(args[0])
		if err != nil {
			return nil, err
		}
		return []models.Provider{provider}, nil
	}

	var linked []models.Provider
	for _, provider := range models.Providers() {
		if user != nil && user.Linked(provider) {
			linked = append(linked, provider)
		}
	}
	if len(linked) == 0 {
		return nil, fmt.Errorf("no providers linked - connect Gmail or HubSpot in the web app first")
	}
	return linked, nil
}

// waitForSync polls combined status until every started provider is idle
// again. Transient poll failures are retried, not treated as completion.
func waitForSync(ctx context.Context, cmd *cobra.Command, client *api.Client, providers []models.Provider, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	running := make(map[models.Provider]bool, len(providers))
	for _, provider := range providers {
		running[provider] = true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := client.Status(ctx)
		if err != nil {
			continue
		}

		for provider := range running {
			if !status.Syncing(provider) {
				delete(running, provider)
				fmt.Fprintf(cmd.OutOrStdout(), "%s done: %s\n", provider.DisplayName(), summarizeProvider(status, provider))
			}
		}
		if len(running) == 0 {
			return nil
		}
	}
}

func summarizeProvider(status *models.IntegrationStatus, provider models.Provider) string {
	switch provider {
	case models.ProviderGmail:
		return fmt.Sprintf("%d emails", status.Google.EmailCount)
	case models.ProviderHubSpot:
		return fmt.Sprintf("%d contacts", status.HubSpot.ContactCount)
	default:
		return "finished"
	}
}
