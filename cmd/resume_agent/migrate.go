package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-topics/internal/db"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Create the experiences and topics tables if they do not exist. The schema is idempotent.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		url := migrateDatabaseURL
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
		}

		ctx := context.Background()
		database, err := db.Connect(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL)")
	rootCmd.AddCommand(migrateCmd)
}
