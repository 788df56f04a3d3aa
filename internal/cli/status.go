package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"advisor/internal/models"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show integration status",
		Long:  "Show which providers are connected, what they have imported, and whether a sync is running.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := sess.Client().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch status: %w", err)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(writer, "SERVICE\tCONNECTED\tACCOUNT\tIMPORTED\tSTATE")
			fmt.Fprintf(writer, "Gmail\t%s\t%s\t%d emails\t%s\n",
				yesNo(status.Google.Connected),
				dash(status.Google.Email),
				status.Google.EmailCount,
				syncState(status, models.ProviderGmail),
			)
			fmt.Fprintf(writer, "HubSpot\t%s\t%s\t%d contacts\t%s\n",
				yesNo(status.HubSpot.Connected),
				dash(status.HubSpot.Name),
				status.HubSpot.ContactCount,
				syncState(status, models.ProviderHubSpot),
			)
			return writer.Flush()
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func syncState(status *models.IntegrationStatus, provider models.Provider) string {
	switch {
	case status.Syncing(provider):
		return "syncing"
	case status.Connected(provider):
		return "idle"
	default:
		return "-"
	}
}
