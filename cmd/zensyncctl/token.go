package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for a user",
	Long: `Sign a bearer token with the configured auth.jwt_secret. Useful for local
testing and smoke checks; production clients obtain tokens from the identity provider.

Examples:
  zensyncctl token issue --user alice
  zensyncctl token issue --user alice --ttl 15m`,
	RunE: runTokenIssue,
}

func init() {
	tokenIssueCmd.Flags().String("user", "", "user id to put in the token subject")
	tokenIssueCmd.Flags().Duration("ttl", 0, "token lifetime (default auth.jwt_expiry)")
	_ = tokenIssueCmd.MarkFlagRequired("user")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	user, _ := cmd.Flags().GetString("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.JWTExpiry
	}

	uid := shared.UserID(user)
	if !uid.IsValid() {
		return fmt.Errorf("invalid user id %q", user)
	}

	tm, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, ttl)
	if err != nil {
		return err
	}
	token, err := tm.Issue(uid)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"user":       user,
			"token":      token,
			"expires_at": time.Now().Add(ttl).UTC(),
		})
	}
	fmt.Println(token)
	return nil
}
