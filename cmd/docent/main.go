// Command docent runs the document-aware chat gateway.
//
// Usage:
//
//	docent serve --config config.yaml
//	docent validate config.yaml
//	docent schema > config.schema.json
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/docent-ai/docent"
	"github.com/docent-ai/docent/pkg/agent"
	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/embedders"
	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/orchestrator"
	"github.com/docent-ai/docent/pkg/rag"
	"github.com/docent-ai/docent/pkg/server"
	"github.com/docent-ai/docent/pkg/tools"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the chat gateway server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(docent.GetVersion().String())
	return nil
}

// ServeCmd starts the gateway server.
type ServeCmd struct {
	Host string `help:"Bind address (overrides config)."`
	Port int    `help:"Port to listen on (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cli.Config != "" {
		slog.Info("Loaded configuration", "path", cli.Config)
	}

	// Flag overrides beat both the config file and environment.
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// Reinitialize logging now that the config's logger section is known.
	cleanup, err := initServeLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracerConfig{
			Enabled:     cfg.Observability.TracingEnabled,
			Endpoint:    cfg.Observability.TracingEndpoint,
			ServiceName: cfg.Observability.ServiceName,
		},
		Metrics: observability.MetricsConfig{Enabled: cfg.Observability.MetricsEnabled},
	})
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown error", "error", err)
		}
	}()

	llm := llms.NewClient(&cfg.LLM)
	embedder := embedders.NewOllamaEmbedder(&cfg.LLM)

	manual, err := rag.NewManualBackend(&cfg.RAG, embedder)
	if err != nil {
		return fmt.Errorf("failed to create manual backend: %w", err)
	}
	framework, err := rag.NewFrameworkBackend(&cfg.RAG, embedder)
	if err != nil {
		return fmt.Errorf("failed to create framework backend: %w", err)
	}
	ingestor := rag.NewIngestor(manual, framework, cfg.RAG.UploadDir)

	// Auto-ingest files dropped into the upload directory. Skipped when
	// RAG is off so a disabled deployment never indexes in the background.
	var watcher *rag.UploadWatcher
	if cfg.RAG.IsEnabled() && cfg.RAG.WatchUploads {
		watcher, err = rag.NewUploadWatcher(cfg.RAG.UploadDir, ingestor)
		if err != nil {
			return fmt.Errorf("failed to create upload watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start upload watcher: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	registry := tools.NewDefaultRegistry()
	agentModel := cfg.Agent.Model
	if agentModel == "" {
		agentModel = cfg.LLM.GenerationModel
	}
	chatAgent := agent.New(llm, registry, agentModel, cfg.Agent.MaxSteps)

	orch := orchestrator.New(llm, ingestor, cfg)

	srv := server.New(cfg, orch, ingestor, chatAgent, llm, server.WithObservability(obs))

	// Print startup info
	blueColor := "\033[38;2;59;130;246m"
	resetColor := "\033[0m"
	fmt.Printf("\n%s🚀 Docent server ready!%s\n", blueColor, resetColor)
	fmt.Printf("   Chat (WS):   ws://%s/ws\n", srv.Address())
	fmt.Printf("   Admin API:   http://%s/api\n", srv.Address())
	fmt.Printf("   Health:      http://%s/health\n", srv.Address())
	fmt.Printf("   LLM:         %s via %s\n", cfg.LLM.GenerationModel, cfg.LLM.BaseURL)
	if cfg.RAG.IsEnabled() {
		fmt.Printf("   RAG:         %s default (embeddings: %s, store: %s)\n",
			cfg.RAG.BackendDefault, cfg.LLM.EmbeddingModel, cfg.RAG.VectorStore)
		if watcher != nil {
			fmt.Printf("   Uploads:     watching %s\n", cfg.RAG.UploadDir)
		}
	} else {
		fmt.Printf("   RAG:         disabled\n")
	}
	fmt.Printf("   Agent:       Agent1 (%s, max %d steps)\n", agentModel, cfg.Agent.MaxSteps)
	if cfg.Observability.MetricsEnabled {
		fmt.Printf("   Metrics:     http://%s/metrics\n", srv.Address())
	}
	if cfg.Observability.TracingEnabled {
		fmt.Printf("   Tracing:     otlp (%s)\n", cfg.Observability.TracingEndpoint)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start server (blocks until context is cancelled)
	return srv.Start(ctx)
}

// printBanner prints a colored ASCII banner using docent-blue (#3b82f6)
func printBanner() {
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			// Not a terminal, skip banner
			return
		}
	} else {
		return
	}

	// Blue color: #3b82f6 = RGB(59, 130, 246)
	// Use ANSI RGB color mode: \033[38;2;R;G;Bm
	blueColor := "\033[38;2;59;130;246m"
	resetColor := "\033[0m"

	banner := `
██████╗  ██████╗  ██████╗███████╗███╗   ██╗████████╗
██╔══██╗██╔═══██╗██╔════╝██╔════╝████╗  ██║╚══██╔══╝
██║  ██║██║   ██║██║     █████╗  ██╔██╗ ██║   ██║
██║  ██║██║   ██║██║     ██╔══╝  ██║╚██╗██║   ██║
██████╔╝╚██████╔╝╚██████╗███████╗██║ ╚████║   ██║
╚═════╝  ╚═════╝  ╚═════╝╚══════╝╚═╝  ╚═══╝   ╚═╝
`
	fmt.Printf("%s%s%s\n", blueColor, banner, resetColor)
}

// shouldSkipBanner checks if command should skip banner.
// Informational commands (version, validate, schema) print plain output.
func shouldSkipBanner(args []string) bool {
	if len(args) < 2 {
		return false
	}

	for _, arg := range args {
		if arg == "version" || arg == "validate" || arg == "schema" {
			return true
		}
	}
	return false
}

func main() {
	if !shouldSkipBanner(os.Args) {
		printBanner()
	}

	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docent"),
		kong.Description("Docent - document-aware chat gateway"),
		kong.UsageOnError(),
	)

	// Initialize logger with CLI flags/env vars before config loading;
	// serve reapplies the config file's logger section later.
	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
