package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"advisor/internal/models"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := sess.Client().History(ctx, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Messages) == 0 {
				fmt.Fprintln(out, "No messages yet.")
				return nil
			}

			for _, msg := range page.Messages {
				label := "advisor"
				if msg.Role == models.RoleUser {
					label = "you"
				}
				stamp := msg.Timestamp.Local().Format("Jan 2 15:04")
				fmt.Fprintf(out, "[%s] %s: %s\n", stamp, label, strings.TrimSpace(msg.Content))
			}
			if page.HasMore {
				fmt.Fprintln(out, "(older messages not shown, raise --limit to see more)")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "how many messages to fetch")

	return cmd
}
