package main

import (
	"fmt"
	"time"

	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/rbac"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access/refresh token pair for development",
	Long:  "Mints a signed token pair with the configured JWT settings. Identity issuance in production belongs to the identity provider.",
	RunE:  runToken,
}

var (
	tokenUserID    string
	tokenAccountID string
	tokenRole      string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User id (required)")
	tokenCmd.Flags().StringVar(&tokenAccountID, "account", "", "Account id (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", rbac.RoleOwner, "Role: owner, operator, analyst or super_admin")

	for _, f := range []string{"user", "account"} {
		if err := tokenCmd.MarkFlagRequired(f); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", f, err))
		}
	}
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	switch tokenRole {
	case rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst, rbac.RoleSuperAdmin:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	pair, err := m.IssuePair(time.Now(), tokenUserID, tokenAccountID, tokenRole)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "access_token=%s\n", pair.AccessToken)
	fmt.Fprintf(out, "refresh_token=%s\n", pair.RefreshToken)
	return nil
}
