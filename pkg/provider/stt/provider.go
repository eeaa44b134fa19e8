// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a hosted batch transcription service (e.g., fal.ai's
// Whisper queue) and exposes a uniform interface: hand it a local audio file,
// get back a full Transcript. Providers own upload, job submission, polling,
// and retries internally.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/hzn-labs/horizonsum/pkg/types"
)

// Config describes recognition hints for a transcription request. All fields
// are optional; zero values let the provider pick its defaults.
type Config struct {
	// Language is the ISO 639-1 language code for recognition (e.g., "en").
	// Empty lets the provider auto-detect the language, if supported.
	Language string

	// Task selects between plain transcription and translation to English.
	// Valid values are "transcribe" (default) and "translate".
	Task string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use and must honour context
// cancellation between network round trips: a cancelled ctx aborts the job
// and returns ctx.Err() wrapped in a provider error.
type Provider interface {
	// Transcribe uploads the audio file at audioPath, runs it through the
	// provider's transcription service, and returns the full transcript.
	// Blocks until the job completes, fails, or ctx is cancelled.
	Transcribe(ctx context.Context, audioPath string, cfg Config) (*types.Transcript, error)
}
