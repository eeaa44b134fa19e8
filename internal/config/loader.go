package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"fal"},
}

// Defaults applied by [Validate] when the corresponding field is unset.
const (
	DefaultListenAddr     = ":8080"
	DefaultOutputDir      = "output"
	DefaultWorkDir        = "work"
	DefaultMaxAudioMB     = 50
	DefaultGenerationsMax = 5
	DefaultPromptsDir     = "prompts"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all validation
// failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.FallbackModel != "" && cfg.Providers.LLM.FallbackModel == cfg.Providers.LLM.Model {
		slog.Warn("providers.llm.fallback_model equals the primary model; fallback will retry the same model",
			"model", cfg.Providers.LLM.Model,
		)
	}

	// Pipeline
	if cfg.Pipeline.OutputDir == "" {
		cfg.Pipeline.OutputDir = DefaultOutputDir
	}
	if cfg.Pipeline.WorkDir == "" {
		cfg.Pipeline.WorkDir = DefaultWorkDir
	}
	if cfg.Pipeline.MaxAudioMB == 0 {
		cfg.Pipeline.MaxAudioMB = DefaultMaxAudioMB
	}
	if cfg.Pipeline.MaxAudioMB < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_audio_mb %d must be positive", cfg.Pipeline.MaxAudioMB))
	}
	if cfg.Pipeline.TranscriptTokenBudget < 0 {
		errs = append(errs, fmt.Errorf("pipeline.transcript_token_budget %d must not be negative", cfg.Pipeline.TranscriptTokenBudget))
	}
	if cfg.Pipeline.GenerationsMax == 0 {
		cfg.Pipeline.GenerationsMax = DefaultGenerationsMax
	}
	if cfg.Pipeline.GenerationsMax < 0 || cfg.Pipeline.GenerationsMax > 10 {
		errs = append(errs, fmt.Errorf("pipeline.generations_max %d is out of range [1, 10]", cfg.Pipeline.GenerationsMax))
	}

	// Terms
	if cfg.Terms.DictionaryFile == "" {
		slog.Warn("terms.dictionary_file is empty; terminology correction will run without a domain dictionary")
	}
	if cfg.Terms.CorrectionsDB == "" {
		slog.Warn("terms.corrections_db is empty; learned corrections will not persist across restarts")
	}

	// Prompts
	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = DefaultPromptsDir
	}

	// Sessions
	if cfg.Sessions.PostgresDSN == "" {
		slog.Warn("sessions.postgres_dsn is empty; run history will be kept in memory only")
	}

	// Downloader
	if cfg.Downloader.YTDLPPath == "" {
		cfg.Downloader.YTDLPPath = "yt-dlp"
	}
	if cfg.Downloader.FFmpegPath == "" {
		cfg.Downloader.FFmpegPath = "ffmpeg"
	}
	if cfg.Downloader.FFprobePath == "" {
		cfg.Downloader.FFprobePath = "ffprobe"
	}
	if cfg.Downloader.Timeout < 0 {
		errs = append(errs, fmt.Errorf("downloader.timeout %s must not be negative", cfg.Downloader.Timeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
