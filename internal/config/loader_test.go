package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
    fallback_model: gpt-4o-mini
  stt:
    name: fal
    api_key: fal-test
    model: wizper
pipeline:
  output_dir: /tmp/out
  work_dir: /tmp/work
  max_audio_mb: 25
  transcript_token_budget: 24000
  generations_max: 3
terms:
  dictionary_file: terms.yaml
  corrections_db: corrections.db
prompts:
  dir: prompts
sessions:
  postgres_dsn: postgres://localhost/horizonsum
downloader:
  ytdlp_path: /usr/local/bin/yt-dlp
  timeout: 10m
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("llm provider = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.LLM.FallbackModel != "gpt-4o-mini" {
		t.Errorf("fallback_model = %q", cfg.Providers.LLM.FallbackModel)
	}
	if cfg.Providers.STT.Name != "fal" || cfg.Providers.STT.Model != "wizper" {
		t.Errorf("stt provider = %+v", cfg.Providers.STT)
	}
	if cfg.Pipeline.MaxAudioMB != 25 || cfg.Pipeline.GenerationsMax != 3 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Terms.DictionaryFile != "terms.yaml" || cfg.Terms.CorrectionsDB != "corrections.db" {
		t.Errorf("terms = %+v", cfg.Terms)
	}
	if cfg.Sessions.PostgresDSN != "postgres://localhost/horizonsum" {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if cfg.Downloader.YTDLPPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("ytdlp_path = %q", cfg.Downloader.YTDLPPath)
	}
	if cfg.Downloader.Timeout != 10*time.Minute {
		t.Errorf("timeout = %s", cfg.Downloader.Timeout)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	const minimal = `
providers:
  llm:
    name: openai
  stt:
    name: fal
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("listen_addr = %q, want default %q", cfg.Server.ListenAddr, DefaultListenAddr)
	}
	if cfg.Pipeline.OutputDir != DefaultOutputDir || cfg.Pipeline.WorkDir != DefaultWorkDir {
		t.Errorf("pipeline dirs = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxAudioMB != DefaultMaxAudioMB {
		t.Errorf("max_audio_mb = %d", cfg.Pipeline.MaxAudioMB)
	}
	if cfg.Pipeline.GenerationsMax != DefaultGenerationsMax {
		t.Errorf("generations_max = %d", cfg.Pipeline.GenerationsMax)
	}
	if cfg.Prompts.Dir != DefaultPromptsDir {
		t.Errorf("prompts.dir = %q", cfg.Prompts.Dir)
	}
	if cfg.Downloader.YTDLPPath != "yt-dlp" || cfg.Downloader.FFmpegPath != "ffmpeg" || cfg.Downloader.FFprobePath != "ffprobe" {
		t.Errorf("downloader = %+v", cfg.Downloader)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	const yml = `
providers:
  llm:
    name: openai
  stt:
    name: fal
pipelime:
  output_dir: /tmp
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{
			name: "missing llm provider",
			yml: `
providers:
  stt:
    name: fal
`,
			want: "providers.llm.name is required",
		},
		{
			name: "missing stt provider",
			yml: `
providers:
  llm:
    name: openai
`,
			want: "providers.stt.name is required",
		},
		{
			name: "bad log level",
			yml: `
server:
  log_level: verbose
providers:
  llm:
    name: openai
  stt:
    name: fal
`,
			want: "server.log_level",
		},
		{
			name: "generations out of range",
			yml: `
providers:
  llm:
    name: openai
  stt:
    name: fal
pipeline:
  generations_max: 50
`,
			want: "generations_max",
		},
		{
			name: "incomplete tls",
			yml: `
server:
  tls:
    cert_file: server.crt
providers:
  llm:
    name: openai
  stt:
    name: fal
`,
			want: "server.tls",
		},
		{
			name: "negative timeout",
			yml: `
providers:
  llm:
    name: openai
  stt:
    name: fal
downloader:
  timeout: -1s
`,
			want: "downloader.timeout",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.yml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.Name != "openai" {
		t.Errorf("unexpected config: %+v", cfg.Providers.LLM)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if LogLevel("trace").IsValid() {
		t.Error("trace should not be valid")
	}
}
