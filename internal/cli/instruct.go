package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInstructCmd(opts *rootOptions) *cobra.Command {
	var trigger string

	cmd := &cobra.Command{
		Use:   "instruct <text>",
		Short: "Add an ongoing instruction",
		Long:  "Register a standing instruction the assistant applies on its own, like \"flag emails from new leads\". The trigger scopes when it runs.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			instruction := strings.TrimSpace(strings.Join(args, " "))
			if instruction == "" {
				return fmt.Errorf("instruction text is empty")
			}

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			saved, err := sess.Client().AddInstruction(ctx, instruction, trigger)
			if err != nil {
				return fmt.Errorf("failed to add instruction: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Instruction #%d saved (%s)\n", saved.ID, saved.TriggerType)
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "", "when the instruction applies (email_received, calendar_event, hubspot_update, all)")

	return cmd
}
