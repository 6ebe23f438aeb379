package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-topics/internal/config"
	"github.com/jonathan/resume-topics/internal/server"
)

var tokenUserID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: `Sign a bearer token for a user id with JWT_SECRET.

Tokens are normally issued by the upstream auth service; this command exists for local
development and for driving the watch command.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, err := uuid.Parse(tokenUserID)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		if userID == uuid.Nil {
			return fmt.Errorf("invalid --user: nil uuid")
		}

		jwtCfg, err := config.NewJWTConfig()
		if err != nil {
			return err
		}
		token, err := server.NewJWTService(jwtCfg).GenerateToken(userID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User id (UUID) to put in the token (required)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
