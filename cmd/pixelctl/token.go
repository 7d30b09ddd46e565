package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pixelCV/internal/auth"
	"pixelCV/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		owner    string
		ttl      time.Duration
		issuer   string
		audience string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Long: `Signs an HS256 access token with AUTH_JWT_SECRET for local development.
Production tokens come from the identity provider.`,
		Example: `  pixelctl token --owner 2b1f6c1e-demo --ttl 8h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner = strings.TrimSpace(owner)
			if owner == "" {
				return errors.New("missing required flag: --owner")
			}
			verifier, err := auth.NewVerifier(config.AuthConfig{
				JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
				Issuer:    firstNonEmpty(issuer, os.Getenv("AUTH_ISSUER")),
				Audience:  firstNonEmpty(audience, os.Getenv("AUTH_AUDIENCE"), "authenticated"),
			})
			if err != nil {
				return fmt.Errorf("init signer: %w", err)
			}
			token, err := verifier.Issue(owner, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner id placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer claim (defaults to AUTH_ISSUER)")
	cmd.Flags().StringVar(&audience, "audience", "", "Audience claim (defaults to AUTH_AUDIENCE)")
	return cmd
}
