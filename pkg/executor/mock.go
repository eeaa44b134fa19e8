package executor

import (
	"context"
	"sync"
)

// Call records a single command invocation on the Mock.
type Call struct {
	Name string
	Args []string
}

// Mock is a test double for Executor. Responses are matched by command name;
// unmatched commands return Output, Err.
type Mock struct {
	mu sync.Mutex

	// Output is returned by Execute when no per-command response matches.
	Output string

	// Err, if non-nil, is returned by Execute when no per-command response matches.
	Err error

	// Responses maps a command name to its canned output and error.
	Responses map[string]struct {
		Output string
		Err    error
	}

	// Calls records every invocation in order.
	Calls []Call
}

// Execute implements Executor.
func (m *Mock) Execute(_ context.Context, name string, args ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Name: name, Args: args})
	if r, ok := m.Responses[name]; ok {
		return r.Output, r.Err
	}
	return m.Output, m.Err
}

var _ Executor = (*Mock)(nil)
