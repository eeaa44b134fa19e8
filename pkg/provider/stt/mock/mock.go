// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts into the pipeline
// without a live transcription backend.
package mock

import (
	"context"
	"sync"

	"github.com/hzn-labs/horizonsum/pkg/provider/stt"
	"github.com/hzn-labs/horizonsum/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// AudioPath is the file path passed to Transcribe.
	AudioPath string
	// Cfg is the recognition config passed to Transcribe.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return nil, nil.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe. May be nil.
	Transcript *types.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, audioPath string, cfg stt.Config) (*types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, AudioPath: audioPath, Cfg: cfg})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Transcript, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
