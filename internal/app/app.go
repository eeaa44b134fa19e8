// Package app wires all HorizonSum subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithRunStore, WithCorrectionStore, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hzn-labs/horizonsum/internal/config"
	"github.com/hzn-labs/horizonsum/internal/correction"
	correctionsqlite "github.com/hzn-labs/horizonsum/internal/correction/sqlite"
	"github.com/hzn-labs/horizonsum/internal/download"
	"github.com/hzn-labs/horizonsum/internal/health"
	"github.com/hzn-labs/horizonsum/internal/observe"
	"github.com/hzn-labs/horizonsum/internal/pipeline"
	"github.com/hzn-labs/horizonsum/internal/resilience"
	"github.com/hzn-labs/horizonsum/internal/server"
	"github.com/hzn-labs/horizonsum/internal/session"
	sessionpostgres "github.com/hzn-labs/horizonsum/internal/session/postgres"
	"github.com/hzn-labs/horizonsum/internal/summarize"
	"github.com/hzn-labs/horizonsum/internal/term"
	"github.com/hzn-labs/horizonsum/internal/topics"
	"github.com/hzn-labs/horizonsum/internal/transcript/analyze"
	"github.com/hzn-labs/horizonsum/internal/transcript/phonetic"
	"github.com/hzn-labs/horizonsum/pkg/executor"
	"github.com/hzn-labs/horizonsum/pkg/provider/llm"
	"github.com/hzn-labs/horizonsum/pkg/provider/stt"
)

// defaultPrompt seeds the prompts directory when no default template exists
// yet, so a fresh deployment can summarize out of the box.
const defaultPrompt = `Summarize the following transcript for a crypto-native audience.
Cover the main announcements, decisions, and discussion points.

Transcript:
{TRANSCRIPT}

{TOPICS}

Terminology reference (use these exact spellings):
{CONTEXT}
`

// Providers holds the hosted model backends the pipeline depends on.
// Populated by main.go from the config. FallbackLLM may be nil.
type Providers struct {
	LLM         llm.Provider
	FallbackLLM llm.Provider
	STT         stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	dict        *term.Dictionary
	corrections correction.Store
	runs        session.Store
	broadcast   *session.Broadcaster
	templates   *summarize.TemplateStore
	summarizer  *summarize.Summarizer
	pipeline    *pipeline.Pipeline
	httpServer  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRunStore injects a run store instead of creating one from config.
func WithRunStore(s session.Store) Option {
	return func(a *App) { a.runs = s }
}

// WithCorrectionStore injects a correction store instead of opening the
// SQLite database from config.
func WithCorrectionStore(s correction.Store) Option {
	return func(a *App) { a.corrections = s }
}

// WithDictionary injects a terminology dictionary instead of loading the
// configured YAML file.
func WithDictionary(d *term.Dictionary) Option {
	return func(a *App) { a.dict = d }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.STT == nil {
		return nil, fmt.Errorf("app: LLM and STT providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		broadcast: session.NewBroadcaster(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initDictionary(); err != nil {
		return nil, fmt.Errorf("app: init dictionary: %w", err)
	}
	if err := a.initCorrections(); err != nil {
		return nil, fmt.Errorf("app: init corrections: %w", err)
	}
	if err := a.initRunStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init run store: %w", err)
	}
	if err := a.initTemplates(); err != nil {
		return nil, fmt.Errorf("app: init templates: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.initHTTPServer()

	return a, nil
}

// initDictionary loads the terminology YAML file, or falls back to an empty
// dictionary when none is configured.
func (a *App) initDictionary() error {
	if a.dict != nil {
		return nil
	}
	path := a.cfg.Terms.DictionaryFile
	if path == "" {
		a.dict = &term.Dictionary{}
		return nil
	}
	d, err := term.LoadFile(path)
	if err != nil {
		return err
	}
	a.dict = d
	slog.Info("loaded terminology dictionary", "path", path, "terms", len(d.Terms), "people", len(d.People))
	return nil
}

// initCorrections opens the learned-corrections database, or keeps them in
// memory when no file is configured.
func (a *App) initCorrections() error {
	if a.corrections != nil {
		return nil
	}
	path := a.cfg.Terms.CorrectionsDB
	if path == "" {
		a.corrections = correction.NewMemStore()
		return nil
	}
	store, err := correctionsqlite.Open(path)
	if err != nil {
		return err
	}
	a.corrections = store
	a.closers = append(a.closers, store.Close)
	slog.Info("opened corrections database", "path", path)
	return nil
}

// initRunStore connects to PostgreSQL when configured, otherwise run history
// lives in memory.
func (a *App) initRunStore(ctx context.Context) error {
	if a.runs != nil {
		return nil
	}
	dsn := a.cfg.Sessions.PostgresDSN
	if dsn == "" {
		a.runs = session.NewMemStore()
		return nil
	}
	store, err := sessionpostgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.runs = store
	a.closers = append(a.closers, store.Close)
	slog.Info("connected to run store", "backend", "postgres")
	return nil
}

// initTemplates opens the prompt template directory and seeds the default
// template on first start.
func (a *App) initTemplates() error {
	store, err := summarize.NewTemplateStore(a.cfg.Prompts.Dir)
	if err != nil {
		return err
	}
	if _, err := store.Get(summarize.DefaultTemplateName); err != nil {
		if err := store.Add(summarize.DefaultTemplateName, defaultPrompt); err != nil {
			return err
		}
		slog.Info("seeded default prompt template", "dir", a.cfg.Prompts.Dir)
	}
	a.templates = store
	return nil
}

// initPipeline builds the processing pipeline from the providers and stores.
func (a *App) initPipeline() error {
	llmFB := resilience.NewLLMFallback(a.providers.LLM, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
		},
	})
	if a.providers.FallbackLLM != nil {
		llmFB.AddFallback("fallback", a.providers.FallbackLLM)
	}

	dlOpts := []download.Option{}
	if p := a.cfg.Downloader.YTDLPPath; p != "" {
		dlOpts = append(dlOpts, download.WithYTDLPPath(p))
	}
	if p := a.cfg.Downloader.FFmpegPath; p != "" {
		dlOpts = append(dlOpts, download.WithFFmpegPath(p))
	}
	if p := a.cfg.Downloader.FFprobePath; p != "" {
		dlOpts = append(dlOpts, download.WithFFprobePath(p))
	}
	if mb := a.cfg.Pipeline.MaxAudioMB; mb > 0 {
		dlOpts = append(dlOpts, download.WithMaxAudioMB(mb))
	}
	downloader, err := download.New(executor.New(), a.cfg.Pipeline.WorkDir, dlOpts...)
	if err != nil {
		return err
	}

	analyzerOpts := []analyze.Option{}
	if a.cfg.Pipeline.TranscriptTokenBudget > 0 {
		analyzerOpts = append(analyzerOpts, analyze.WithMaxInputChars(a.cfg.Pipeline.TranscriptTokenBudget))
	}
	// Every LLM-backed stage goes through the fallback wrapper so model
	// failover and breaker state are shared across the whole run.
	analyzer := analyze.New(llmFB, phonetic.New(), a.corrections, analyzerOpts...)
	extractor := topics.New(llmFB)
	a.summarizer = summarize.New(llmFB.Group(), a.templates)

	a.pipeline = pipeline.New(
		downloader,
		a.providers.STT,
		analyzer,
		extractor,
		a.summarizer,
		a.corrections,
		a.dict,
		a.runs,
		a.broadcast,
		a.cfg.Pipeline.OutputDir,
		pipeline.WithObserver(observe.NewStageObserver(observe.DefaultMetrics())),
	)
	return nil
}

// initHTTPServer assembles the API server and its health checks.
func (a *App) initHTTPServer() {
	checks := health.New(
		health.RunStore(a.runs),
		health.Binary("ytdlp", orDefault(a.cfg.Downloader.YTDLPPath, "yt-dlp")),
		health.Binary("ffmpeg", orDefault(a.cfg.Downloader.FFmpegPath, "ffmpeg")),
		health.Binary("ffprobe", orDefault(a.cfg.Downloader.FFprobePath, "ffprobe")),
	)

	srv := server.New(a.runs, a.pipeline, a.summarizer, a.templates, a.broadcast, a.dict,
		server.WithHealth(checks),
		server.WithMetrics(observe.DefaultMetrics()),
		server.WithGenerationsMax(a.cfg.Pipeline.GenerationsMax),
	)

	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler exposes the HTTP handler for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails. A cancelled context triggers a graceful drain before returning.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpServer.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(drainCtx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: run: %w", err)
	}
	return nil
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// EnsureDirs creates the working directories named in cfg. Called from main
// before New so a misconfigured path fails fast with a clear error.
func EnsureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.Pipeline.OutputDir, cfg.Pipeline.WorkDir, cfg.Prompts.Dir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("app: create dir %q: %w", dir, err)
		}
	}
	if db := cfg.Terms.CorrectionsDB; db != "" {
		if err := os.MkdirAll(filepath.Dir(db), 0o755); err != nil {
			return fmt.Errorf("app: create dir %q: %w", filepath.Dir(db), err)
		}
	}
	return nil
}
