package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"advisor/internal/models"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		token  string
		google bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the advisor backend",
		Long:  "Sign in with an API token. Tokens come from the web app after signing in with Google; --google prints the URL to start there.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, cleanup, err := openSession(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if google {
				fmt.Fprintln(cmd.OutOrStdout(), "Open this URL to sign in with Google:")
				fmt.Fprintln(cmd.OutOrStdout(), "  "+sess.Client().GoogleLoginURL())
				fmt.Fprintln(cmd.OutOrStdout(), "Then run: advisor login --token <token>")
				return nil
			}

			if token == "" {
				token, err = promptToken()
				if err != nil {
					return err
				}
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("no token given")
			}

			user, err := sess.LoginWithToken(ctx, token)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.DisplayName())
			for _, provider := range models.Providers() {
				if user.Linked(provider) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s linked\n", provider.DisplayName())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (prompted for when omitted)")
	cmd.Flags().BoolVar(&google, "google", false, "print the Google sign-in URL instead")

	return cmd
}

// promptToken reads a token from stdin without echoing it.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, pass --token")
	}

	fmt.Fprint(os.Stderr, "Token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return string(raw), nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, cleanup, err := openSession(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sess.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			user := sess.User()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", user.DisplayName(), user.Email)
			for _, provider := range models.Providers() {
				mark := "not linked"
				if user.Linked(provider) {
					mark = "linked"
				}
				fmt.Fprintf(out, "  %-8s %s\n", provider.DisplayName(), mark)
			}
			return nil
		},
	}
}
