// Command horizonsum is the main entry point for the HorizonSum content
// pipeline server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/hzn-labs/horizonsum/internal/app"
	"github.com/hzn-labs/horizonsum/internal/config"
	"github.com/hzn-labs/horizonsum/internal/observe"
	"github.com/hzn-labs/horizonsum/pkg/provider/llm"
	"github.com/hzn-labs/horizonsum/pkg/provider/llm/anyllm"
	"github.com/hzn-labs/horizonsum/pkg/provider/llm/openai"
	"github.com/hzn-labs/horizonsum/pkg/provider/stt"
	"github.com/hzn-labs/horizonsum/pkg/provider/stt/fal"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "horizonsum: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "horizonsum: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("horizonsum starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	if err := app.EnsureDirs(cfg); err != nil {
		slog.Error("failed to prepare directories", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "horizonsum",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the LLM and STT backends named in cfg.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}

	primary, err := buildLLM(cfg.Providers.LLM.ProviderEntry, cfg.Providers.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = primary
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	if fb := cfg.Providers.LLM.FallbackModel; fb != "" {
		fallback, err := buildLLM(cfg.Providers.LLM.ProviderEntry, fb)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm model %q: %w", fb, err)
		}
		ps.FallbackLLM = fallback
		slog.Info("provider created", "kind", "llm-fallback", "name", cfg.Providers.LLM.Name, "model", fb)
	}

	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = sttProvider
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name, "model", cfg.Providers.STT.Model)

	return ps, nil
}

// buildLLM creates the provider for the entry, overriding the model so the
// primary and fallback can share one entry. OpenAI uses the official SDK
// directly; every other backend goes through the any-llm bridge.
func buildLLM(entry config.ProviderEntry, model string) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, model, opts...)
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, model, opts...)
}

// buildSTT creates the transcription provider for the entry.
func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "fal":
		var opts []fal.Option
		if entry.Model != "" {
			opts = append(opts, fal.WithModel(entry.Model))
		}
		return fal.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q (supported: fal)", entry.Name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        HorizonSum — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("LLM fallback", cfg.Providers.LLM.Name, cfg.Providers.LLM.FallbackModel)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	if cfg.Sessions.PostgresDSN != "" {
		fmt.Printf("║  Run store       : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Run store       : %-19s ║\n", "memory")
	}
	if cfg.Terms.DictionaryFile != "" {
		fmt.Printf("║  Dictionary      : %-19s ║\n", trim19(cfg.Terms.DictionaryFile))
	} else {
		fmt.Printf("║  Dictionary      : %-19s ║\n", "(none)")
	}
	fmt.Printf("║  Prompts dir     : %-19s ║\n", trim19(cfg.Prompts.Dir))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" || (kind == "LLM fallback" && model == "") {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, trim19(value))
}

func trim19(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
