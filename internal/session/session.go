// Package session tracks pipeline runs from submission to review.
//
// A [Run] is one processed stream URL: its pipeline [Stage], an error if the
// pipeline failed, and the [Results] once it completed. Runs live in a
// [Store] — in-memory by default, PostgreSQL-backed when a DSN is configured
// — and stage changes fan out to watchers through a [Broadcaster].
//
// Stages only move forward. A run that reached "summarizing" can never return
// to "downloading"; the only transition out of order is into [StageError],
// which is terminal, as is [StageCompleted].
package session

import (
	"context"
	"errors"
	"time"

	"github.com/hzn-labs/horizonsum/internal/topics"
	"github.com/hzn-labs/horizonsum/internal/transcript"
	"github.com/hzn-labs/horizonsum/pkg/types"
)

// Store errors.
var (
	// ErrNotFound is returned when no run exists for the given ID.
	ErrNotFound = errors.New("session: run not found")

	// ErrInvalidTransition is returned when a stage update would move a run
	// backwards or out of a terminal stage.
	ErrInvalidTransition = errors.New("session: invalid stage transition")
)

// Stage is a pipeline processing stage.
type Stage string

const (
	StageQueued           Stage = "queued"
	StageDownloading      Stage = "downloading"
	StageTranscribing     Stage = "transcribing"
	StageCleaning         Stage = "cleaning"
	StageCorrecting       Stage = "correcting"
	StageExtractingTopics Stage = "extracting_topics"
	StageSummarizing      Stage = "summarizing"
	StageCompleted        Stage = "completed"
	StageError            Stage = "error"
)

// stageOrder defines the forward progression. Error is handled separately.
var stageOrder = map[Stage]int{
	StageQueued:           0,
	StageDownloading:      1,
	StageTranscribing:     2,
	StageCleaning:         3,
	StageCorrecting:       4,
	StageExtractingTopics: 5,
	StageSummarizing:      6,
	StageCompleted:        7,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageError {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// Terminal reports whether a run in this stage can never change again.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// CanTransitionTo reports whether moving from s to next is allowed: strictly
// forward through the pipeline, or into the error stage from any non-terminal
// stage.
func (s Stage) CanTransitionTo(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageError {
		return true
	}
	from, okFrom := stageOrder[s]
	to, okTo := stageOrder[next]
	return okFrom && okTo && to > from
}

// Results holds everything a completed run produced.
type Results struct {
	// Title is the video title reported by the downloader.
	Title string `json:"title"`

	// Source is the identified platform (youtube, twitter, ...).
	Source string `json:"source"`

	// RawTranscript is the transcript as returned by the speech-to-text
	// provider, before cleaning.
	RawTranscript string `json:"raw_transcript"`

	// Transcript is the cleaned, terminology-corrected transcript.
	Transcript string `json:"transcript"`

	// Chunks carries the per-segment timestamps from the transcription.
	Chunks []types.TranscriptChunk `json:"chunks,omitempty"`

	// Topics are the extracted subjects.
	Topics []topics.Topic `json:"topics,omitempty"`

	// Corrections itemises the terminology substitutions that were applied.
	Corrections []transcript.Correction `json:"corrections,omitempty"`

	// Summaries are the generated drafts, in generation order.
	Summaries []string `json:"summaries"`

	// FinalSummary is the reviewer-authored summary, set after the run
	// completes. Empty until a reviewer saves one.
	FinalSummary string `json:"final_summary,omitempty"`

	// ArtifactDir is the directory holding the on-disk artifacts for this run.
	ArtifactDir string `json:"artifact_dir"`
}

// Run is one tracked pipeline run.
type Run struct {
	// ID is the run's unique identifier (UUID).
	ID string `json:"id"`

	// URL is the stream URL being processed.
	URL string `json:"url"`

	// Template is the summary template name requested for this run.
	Template string `json:"template"`

	// Generations is how many summary drafts were requested.
	Generations int `json:"generations"`

	// Stage is the current pipeline stage.
	Stage Stage `json:"stage"`

	// Error holds the failure message when Stage is [StageError].
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Results is set once the run completes.
	Results *Results `json:"results,omitempty"`
}

// Clone returns a deep-enough copy for handing out across goroutines: the
// Results pointer is duplicated, slice contents are shared read-only.
func (r *Run) Clone() *Run {
	out := *r
	if r.Results != nil {
		res := *r.Results
		out.Results = &res
	}
	return &out
}

// Store persists runs.
type Store interface {
	// Create inserts a new run. The run's stage must be [StageQueued].
	Create(ctx context.Context, run *Run) error

	// Get returns the run with the given ID, or [ErrNotFound].
	Get(ctx context.Context, id string) (*Run, error)

	// List returns all runs, newest first.
	List(ctx context.Context) ([]*Run, error)

	// SetStage advances the run to stage. Backward moves and moves out of a
	// terminal stage return [ErrInvalidTransition].
	SetStage(ctx context.Context, id string, stage Stage) error

	// SetError marks the run failed with msg.
	SetError(ctx context.Context, id string, msg string) error

	// SetResults attaches results to the run.
	SetResults(ctx context.Context, id string, results *Results) error

	// AppendSummary adds one more draft to a completed run's results.
	AppendSummary(ctx context.Context, id string, summary string) error

	// SetFinalSummary stores the reviewer-authored summary on a completed run.
	SetFinalSummary(ctx context.Context, id string, summary string) error

	// Close releases the store's resources.
	Close() error
}
