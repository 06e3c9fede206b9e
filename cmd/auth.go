package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlindner/mailsort/internal/google"
	"github.com/mlindner/mailsort/internal/mcp/oauth"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailsort to access a Gmail account",
		Long: `Run the Google OAuth flow for an account and store the resulting token.

The command prints an authorization URL. Open it in a browser, grant access,
and paste the authorization code (or the full redirect URL) back into the
prompt. Tokens are stored per account, so multiple Gmail accounts can be
authorized under different names.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, or a credentials.json
file named by GOOGLE_CREDENTIALS_FILE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if google.HasTokenForAccount(account) {
				fmt.Printf("Account %q already has a stored token; continuing will replace it.\n\n", account)
			}

			fmt.Println("Open the following URL in your browser and grant access:")
			fmt.Println()
			fmt.Println("  " + google.GetAuthURLForAccount(account))
			fmt.Println()
			fmt.Print("Enter the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			input, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}

			code, err := authCodeFromInput(input)
			if err != nil {
				return err
			}

			if err := google.SaveTokenForAccount(ctx, account, code); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}

			fmt.Printf("Token stored for account %q. You can now run 'mailsort organize --account %s'.\n", account, account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Name to store the token under (default: 'default')")

	return cmd
}

// authCodeFromInput extracts the authorization code from user input. Accepts
// either a bare code or a full redirect URL pasted from the browser's
// address bar.
func authCodeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("no authorization code provided")
	}

	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("failed to parse redirect URL: %w", err)
		}

		q := u.Query()
		result := oauth.ParseCallbackQuery(
			q.Get("code"),
			q.Get("state"),
			q.Get("error"),
			q.Get("error_description"),
			q.Get("error_uri"),
		)
		if err := result.Err(); err != nil {
			if oauth.IsSilentAuthError(err) {
				return "", fmt.Errorf("authorization requires user interaction: %w", err)
			}
			return "", fmt.Errorf("authorization failed: %w", err)
		}
		if result.Code == "" {
			return "", fmt.Errorf("redirect URL contains no authorization code")
		}
		return result.Code, nil
	}

	return input, nil
}
