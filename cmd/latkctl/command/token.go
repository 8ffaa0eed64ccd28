package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"latksync/internal/relay"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a relay access token",
	Long:  `Signs an HS256 token the relay accepts in the CONNECT auth object and on its HTTP API.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if secret == "" {
			secret = cfg.RelayJWTSecret
		}
		if secret == "" {
			return fmt.Errorf("--secret is required when RELAY_JWT_SECRET is not set")
		}
		if ttl <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		if name == "" {
			name = user
		}

		signed, err := relay.NewAuthenticator(secret).IssueToken(user, name, ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringP("secret", "s", "", "signing secret (defaults to RELAY_JWT_SECRET)")
	tokenCmd.Flags().StringP("user", "u", "", "user id (required)")
	tokenCmd.Flags().StringP("name", "n", "", "username (defaults to the user id)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	tokenCmd.MarkFlagRequired("user")
}
