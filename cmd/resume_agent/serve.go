package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-topics/internal/config"
	"github.com/jonathan/resume-topics/internal/db"
	"github.com/jonathan/resume-topics/internal/generation"
	"github.com/jonathan/resume-topics/internal/graph"
	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/pipeline"
	"github.com/jonathan/resume-topics/internal/server"
	"github.com/jonathan/resume-topics/internal/tracker"
)

var (
	servePort         int
	serveMigrate      bool
	serveDrainTimeout time.Duration
	serveWriterLimit  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the generation endpoints.

Configuration is read from the environment (and .env): DATABASE_URL, LLM_PROVIDER,
GEMINI_API_KEY or OPENAI_API_KEY, JWT_SECRET, TRACKER_BACKEND and friends.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply the database schema before serving")
	serveCmd.Flags().DurationVar(&serveDrainTimeout, "drain-timeout", 2*time.Minute, "How long to let in-flight jobs finish on shutdown")
	serveCmd.Flags().IntVar(&serveWriterLimit, "writer-concurrency", 0, "Concurrent writer calls per job (0 = default)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if serveMigrate {
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		log.Info("database schema applied")
	}

	store, closeStore, err := openTrackerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	llmCfg, err := llmConfig(cfg)
	if err != nil {
		return err
	}
	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey())
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	metrics := server.NewMetrics()
	stages := pipeline.NewStages(
		llm.NewInvoker(client, cfg.LLMTimeout),
		database,
		log.With("component", "pipeline"),
		pipeline.WithWriterConcurrency(serveWriterLimit),
	)
	flows, err := pipeline.NewFlows(stages, nodeHook(log.With("component", "graph"), metrics))
	if err != nil {
		return err
	}

	// Detached jobs outlive the signal so they can drain; cancelJobs abandons them.
	jobsCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	gen := generation.New(database, flows, stages, tracker.New(store),
		generation.WithLogger(log.With("component", "generation")),
		generation.WithMetrics(metrics),
		generation.WithBaseContext(jobsCtx),
		generation.WithHeartbeat(cfg.TrackerHeartbeat()),
	)

	srv, err := server.New(server.Config{
		Port:         cfg.Port,
		Generations:  gen,
		JWT:          server.NewJWTService(cfg.JWT),
		Health:       database,
		Metrics:      metrics,
		Logger:       log.With("component", "server"),
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting",
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"llm_timeout", cfg.LLMTimeout,
		"tracker", cfg.TrackerBackend)

	if err := srv.Start(ctx); err != nil {
		return err
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), serveDrainTimeout)
	defer cancelDrain()
	if err := gen.Wait(drainCtx); err != nil {
		log.Warn("drain timeout reached, cancelling in-flight jobs", "timeout", serveDrainTimeout)
		cancelJobs()
		finalCtx, cancelFinal := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFinal()
		_ = gen.Wait(finalCtx)
	}
	return nil
}

func llmConfig(cfg *config.ServerConfig) (*llm.Config, error) {
	c := llm.ConfigFor(llm.Provider(cfg.LLMProvider))
	if cfg.OpenAIBaseURL != "" {
		c.BaseURL = cfg.OpenAIBaseURL
	}
	c, err := c.WithOverrides(cfg.LLMModels)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return c, nil
}

func openTrackerStore(ctx context.Context, cfg *config.ServerConfig) (tracker.Store, func(), error) {
	switch cfg.TrackerBackend {
	case config.TrackerRedis:
		rdb, err := tracker.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return tracker.NewRedisStore(rdb, cfg.TrackerTTL), func() { _ = rdb.Close() }, nil
	default:
		return tracker.NewMemoryStore(), func() {}, nil
	}
}

// nodeHook logs every pipeline node and records its duration
func nodeHook(log *logger.Logger, metrics *server.Metrics) graph.NodeHook {
	return func(flow, node string, elapsed time.Duration, err error) {
		metrics.ObserveNode(flow, node, elapsed, err)
		if err != nil {
			log.Warn("node failed", "flow", flow, "node", node, "elapsed", elapsed, "error", err)
			return
		}
		log.Debug("node finished", "flow", flow, "node", node, "elapsed", elapsed)
	}
}
