package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
)

func newTokenCmd() *cobra.Command {
	var (
		learnerID string
		role      string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			auth, err := handlers.NewAuthenticator(handlers.AuthConfig{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				TokenTTL: cfg.Auth.TokenTTL,
			})
			if err != nil {
				return err
			}

			tok, err := auth.IssueToken(learnerID, shared.Role(strings.ToLower(role)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&learnerID, "learner", "", "learner id (token subject)")
	cmd.Flags().StringVar(&role, "role", string(shared.RoleStudent), "student, teacher or admin")
	_ = cmd.MarkFlagRequired("learner")
	return cmd
}
