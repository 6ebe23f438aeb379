// Package main provides the entry point for the resume topic generation service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resume_agent",
	Short: "Resume topic generation service",
	Long: "resume_agent turns free-form job experience descriptions into quote-grounded resume bullet points " +
		"tailored to a career path, and serves the generation jobs over a REST API.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
