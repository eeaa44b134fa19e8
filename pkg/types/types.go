// Package types defines the shared types used across all horizonsum packages.
//
// These types form the lingua franca between providers, the pipeline driver,
// and the review server. They are intentionally minimal — each package defines
// its own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Transcript represents a batch speech-to-text result from an STT provider.
type Transcript struct {
	// Text is the full transcribed content.
	Text string

	// Language is the detected (or requested) ISO 639-1 language code.
	// Empty when the provider does not report it.
	Language string

	// Duration is the length of the transcribed audio. Zero when unknown.
	Duration time.Duration

	// Chunks contains per-segment detail when the provider supplies
	// timestamps. May be nil.
	Chunks []TranscriptChunk
}

// TranscriptChunk holds one timestamped segment of a transcript.
type TranscriptChunk struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
