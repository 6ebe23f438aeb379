package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/observability"
	"github.com/jonathan/resume-topics/internal/poller"
	"github.com/jonathan/resume-topics/internal/types"
)

var (
	watchServer   string
	watchToken    string
	watchInterval time.Duration
	watchVerbose  bool
	watchPretty   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow in-flight generations until they settle",
	Long: `Query a running server for the caller's in-flight generations and keep polling
until none remain. Exits immediately when nothing is generating.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", envOr("RESUME_TOPICS_URL", "http://localhost:8080"), "Server base URL")
	watchCmd.Flags().StringVar(&watchToken, "token", os.Getenv("RESUME_TOPICS_TOKEN"), "Bearer token (defaults to RESUME_TOPICS_TOKEN)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", poller.DefaultInterval, "Polling interval")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Log poll failures")
	watchCmd.Flags().BoolVar(&watchPretty, "pretty", false, "Print each snapshot as a box")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchToken == "" {
		return fmt.Errorf("a bearer token is required (--token or RESUME_TOPICS_TOKEN)")
	}

	log := logger.Nop()
	if watchVerbose {
		var err error
		if log, err = logger.New("dev"); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer log.Sync()
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	p := poller.New(
		poller.NewHTTPFetcher(watchServer, watchToken, nil),
		poller.WithInterval(watchInterval),
		poller.WithLogger(log),
		poller.WithObserver(func(snap types.ActiveGenerations) {
			switch {
			case snap.Empty():
			case watchPretty:
				printer.PrintActiveGenerations(snap)
			default:
				printer.PrintStatus(snap)
			}
		}),
	)
	unsubscribe := p.Subscribe(printer.PrintSettled)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Resume(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if p.State() == poller.StateIdle {
		printer.PrintIdle()
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
