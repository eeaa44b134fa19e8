// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that pipeline stages send correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. All fields are safe to set before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: "Hello!"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/hzn-labs/horizonsum/pkg/provider/llm"
	"github.com/hzn-labs/horizonsum/pkg/types"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	// Messages is the slice passed to CountTokens.
	Messages []types.Message
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CompleteResponse is returned by Complete. May be nil (returns nil, nil).
	CompleteResponse *llm.CompletionResponse

	// CompleteResponses, if non-empty, is consumed one element per Complete
	// call before falling back to CompleteResponse. Useful for multi-call
	// sequences (e.g., several summary variants in one run).
	CompleteResponses []*llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, if non-nil, overrides all other Complete behaviour.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// TokenCount is returned by CountTokens. Zero means estimate from content
	// length (~4 chars per token) so callers get plausible counts by default.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// CountTokensCalls records every invocation of CountTokens in order.
	CountTokensCalls []CountTokensCall

	// CapabilitiesCallCount is the number of times Capabilities was called.
	CapabilitiesCallCount int
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFunc
	if fn == nil {
		if p.CompleteErr != nil {
			err := p.CompleteErr
			p.mu.Unlock()
			return nil, err
		}
		resp := p.CompleteResponse
		if len(p.CompleteResponses) > 0 {
			resp = p.CompleteResponses[0]
			p.CompleteResponses = p.CompleteResponses[1:]
		}
		p.mu.Unlock()
		return resp, nil
	}
	p.mu.Unlock()
	return fn(ctx, req)
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
// With TokenCount zero, a length-based estimate is returned instead.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]types.Message, len(messages))
	copy(msgs, messages)
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Messages: msgs})
	if p.CountTokensErr != nil {
		return 0, p.CountTokensErr
	}
	if p.TokenCount != 0 {
		return p.TokenCount, nil
	}
	total := 0
	for _, m := range msgs {
		total += (len(m.Content) + 3) / 4
	}
	return total, nil
}

// Capabilities records the call and returns ModelCapabilities.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ModelCapabilities
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.CountTokensCalls = nil
	p.CapabilitiesCallCount = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
