// Package executor wraps external command execution behind a small interface
// so that callers shelling out to yt-dlp and ffmpeg can be unit tested with a
// fake.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs external commands.
type Executor interface {
	// Execute runs name with args and returns its stdout. A non-zero exit
	// status is returned as an error carrying trimmed stderr for debugging.
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

type implExecutor struct{}

// New creates a new Executor backed by os/exec.
func New() Executor {
	return &implExecutor{}
}

// Execute implements Executor.
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("executor: command %q failed: %w: %s", name, err, stderrStr)
		}
		return "", fmt.Errorf("executor: command %q failed: %w", name, err)
	}

	return stdout.String(), nil
}
