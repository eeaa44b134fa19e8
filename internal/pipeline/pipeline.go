// Package pipeline drives a run through every processing stage.
//
// A [Pipeline] takes a submitted URL and, in order: downloads the audio,
// transcribes it through the hosted speech-to-text provider, cleans the raw
// transcript, applies terminology corrections (dictionary aliases, learned
// corrections, and newly analyzed pairs), extracts topics, and generates
// summary drafts. Stage changes are written to the [session.Store] and fanned
// out through the [session.Broadcaster]; artifacts land under the output
// directory as they are produced, so a failed run keeps everything it got to.
//
// Only one run executes at a time. The LLM stages are expensive and the
// transcription provider rate-limits aggressively, so runs queue behind a
// mutex rather than interleave.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/hzn-labs/horizonsum/internal/correction"
	"github.com/hzn-labs/horizonsum/internal/download"
	"github.com/hzn-labs/horizonsum/internal/observe"
	"github.com/hzn-labs/horizonsum/internal/session"
	"github.com/hzn-labs/horizonsum/internal/summarize"
	"github.com/hzn-labs/horizonsum/internal/term"
	"github.com/hzn-labs/horizonsum/internal/topics"
	"github.com/hzn-labs/horizonsum/internal/transcript"
	"github.com/hzn-labs/horizonsum/internal/transcript/analyze"
	"github.com/hzn-labs/horizonsum/pkg/provider/stt"
	"github.com/hzn-labs/horizonsum/pkg/types"
)

// Failure sentinels, wrapped into the run error so callers can classify what
// broke without parsing messages.
var (
	ErrDownloadFailure      = errors.New("download failure")
	ErrTranscriptionFailure = errors.New("transcription failure")
	ErrAIServiceFailure     = errors.New("ai service failure")
)

// Artifact file names inside a run's artifact directory.
const (
	artifactRawTranscript       = "transcript_raw.txt"
	artifactCorrectedTranscript = "transcript_corrected.txt"
)

// CorrectionSource yields the learned observed→canonical pairs to apply
// alongside the dictionary aliases. Satisfied by the correction store.
type CorrectionSource interface {
	All(ctx context.Context) ([]correction.Correction, error)
}

// Downloader fetches and, when necessary, splits stream audio. Satisfied by
// [download.Downloader].
type Downloader interface {
	Download(ctx context.Context, rawURL string) (*download.Result, error)
	SplitIfNeeded(ctx context.Context, audioPath string) ([]string, error)
}

// Request is one run submission.
type Request struct {
	RunID       string
	URL         string
	Template    string
	Generations int
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = logger
	}
}

// WithSTTConfig sets the transcription config passed to the provider.
func WithSTTConfig(cfg stt.Config) Option {
	return func(p *Pipeline) {
		p.sttConfig = cfg
	}
}

// WithObserver registers hooks for stage metrics.
func WithObserver(obs Observer) Option {
	return func(p *Pipeline) {
		p.observer = obs
	}
}

// Observer receives stage timing callbacks. The observe package provides the
// Prometheus-backed implementation.
type Observer interface {
	StageStarted(stage session.Stage)
	StageFinished(stage session.Stage, d time.Duration, err error)
}

// noopObserver keeps the hot path nil-check free.
type noopObserver struct{}

func (noopObserver) StageStarted(session.Stage)                        {}
func (noopObserver) StageFinished(session.Stage, time.Duration, error) {}

// Pipeline wires the processing stages together. Safe for concurrent Process
// calls; they serialize on an internal mutex.
type Pipeline struct {
	downloader  Downloader
	transcriber stt.Provider
	analyzer    *analyze.Analyzer
	extractor   *topics.Extractor
	summarizer  *summarize.Summarizer
	corrections CorrectionSource
	dict        *term.Dictionary
	store       session.Store
	broadcast   *session.Broadcaster
	outputDir   string

	log       *slog.Logger
	sttConfig stt.Config
	observer  Observer

	// runMu serializes runs.
	runMu sync.Mutex

	// now is replaceable for tests.
	now func() time.Time
}

// New assembles a [Pipeline]. All collaborators are required except the
// options.
func New(
	downloader Downloader,
	transcriber stt.Provider,
	analyzer *analyze.Analyzer,
	extractor *topics.Extractor,
	summarizer *summarize.Summarizer,
	corrections CorrectionSource,
	dict *term.Dictionary,
	store session.Store,
	broadcast *session.Broadcaster,
	outputDir string,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		downloader:  downloader,
		transcriber: transcriber,
		analyzer:    analyzer,
		extractor:   extractor,
		summarizer:  summarizer,
		corrections: corrections,
		dict:        dict,
		store:       store,
		broadcast:   broadcast,
		outputDir:   outputDir,
		log:         slog.Default(),
		observer:    noopObserver{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process executes the full pipeline for req. The run must already exist in
// the store in the queued stage. On failure the run is marked errored with a
// classified message; the returned error carries the matching sentinel.
func (p *Pipeline) Process(ctx context.Context, req Request) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()

	log := p.log.With("run_id", req.RunID, "url", req.URL)
	if cid := observe.CorrelationID(ctx); cid != "" {
		log = log.With("trace_id", cid)
	}
	log.Info("pipeline run starting")

	results, err := p.run(ctx, log, req)
	if err != nil {
		log.Error("pipeline run failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if storeErr := p.store.SetError(ctx, req.RunID, err.Error()); storeErr != nil {
			log.Error("recording run failure", "error", storeErr)
		}
		p.broadcast.Publish(session.Event{
			RunID: req.RunID, Stage: session.StageError, Error: err.Error(), At: p.now(),
		})
		return err
	}

	if err := p.store.SetResults(ctx, req.RunID, results); err != nil {
		return fmt.Errorf("pipeline: store results: %w", err)
	}
	if err := p.advance(ctx, req.RunID, session.StageCompleted); err != nil {
		return err
	}
	log.Info("pipeline run completed",
		"title", results.Title,
		"summaries", len(results.Summaries),
		"topics", len(results.Topics))
	return nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, req Request) (*session.Results, error) {
	// Download.
	if err := p.advance(ctx, req.RunID, session.StageDownloading); err != nil {
		return nil, err
	}
	var dl *download.Result
	err := p.timed(ctx, session.StageDownloading, func(ctx context.Context) error {
		var err error
		dl, err = p.downloader.Download(ctx, req.URL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailure, err)
	}
	defer os.Remove(dl.AudioPath)
	log.Info("audio downloaded", "title", dl.Title, "source", dl.Source)

	artifactDir, err := p.makeArtifactDir(dl.Title)
	if err != nil {
		return nil, err
	}

	// Transcribe, splitting oversized audio first.
	if err := p.advance(ctx, req.RunID, session.StageTranscribing); err != nil {
		return nil, err
	}
	var tr *types.Transcript
	err = p.timed(ctx, session.StageTranscribing, func(ctx context.Context) error {
		var err error
		tr, err = p.transcribe(ctx, dl.AudioPath)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailure, err)
	}
	if err := p.writeArtifact(artifactDir, artifactRawTranscript, tr.Text); err != nil {
		return nil, err
	}
	log.Info("transcription complete", "chars", len(tr.Text), "chunks", len(tr.Chunks))

	// Clean.
	if err := p.advance(ctx, req.RunID, session.StageCleaning); err != nil {
		return nil, err
	}
	var cleaned string
	_ = p.timed(ctx, session.StageCleaning, func(context.Context) error {
		cleaned = transcript.Clean(tr.Text)
		return nil
	})

	// Correct: dictionary aliases + learned corrections + fresh analysis.
	if err := p.advance(ctx, req.RunID, session.StageCorrecting); err != nil {
		return nil, err
	}
	var (
		corrected   string
		corrections []transcript.Correction
	)
	err = p.timed(ctx, session.StageCorrecting, func(ctx context.Context) error {
		var err error
		corrected, corrections, err = p.correct(ctx, log, cleaned)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := p.writeArtifact(artifactDir, artifactCorrectedTranscript, corrected); err != nil {
		return nil, err
	}
	log.Info("corrections applied", "count", len(corrections))

	// Topics. Extraction failures degrade to an empty list.
	if err := p.advance(ctx, req.RunID, session.StageExtractingTopics); err != nil {
		return nil, err
	}
	var topicList []topics.Topic
	_ = p.timed(ctx, session.StageExtractingTopics, func(ctx context.Context) error {
		var err error
		topicList, err = p.extractor.Extract(ctx, corrected)
		if err != nil {
			log.Warn("topic extraction failed, continuing without topics", "error", err)
			topicList = nil
		}
		return nil
	})

	// Summaries.
	if err := p.advance(ctx, req.RunID, session.StageSummarizing); err != nil {
		return nil, err
	}
	var summaries []string
	err = p.timed(ctx, session.StageSummarizing, func(ctx context.Context) error {
		var err error
		summaries, err = p.summarizer.Generate(ctx, req.Template, corrected, topicList, p.dict, req.Generations)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIServiceFailure, err)
	}
	for i, s := range summaries {
		name := fmt.Sprintf("summary_%02d.md", i+1)
		if err := p.writeArtifact(artifactDir, name, s); err != nil {
			return nil, err
		}
	}

	return &session.Results{
		Title:         dl.Title,
		Source:        string(dl.Source),
		RawTranscript: tr.Text,
		Transcript:    corrected,
		Chunks:        tr.Chunks,
		Topics:        topicList,
		Corrections:   corrections,
		Summaries:     summaries,
		ArtifactDir:   artifactDir,
	}, nil
}

// transcribe runs the provider over the audio, splitting it first when it
// exceeds the upload limit and stitching chunk transcripts back together.
func (p *Pipeline) transcribe(ctx context.Context, audioPath string) (*types.Transcript, error) {
	chunks, err := p.downloader.SplitIfNeeded(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 1 {
		return p.transcriber.Transcribe(ctx, chunks[0], p.sttConfig)
	}

	merged := &types.Transcript{}
	var (
		parts  []string
		offset time.Duration
	)
	for _, chunk := range chunks {
		tr, err := p.transcriber.Transcribe(ctx, chunk, p.sttConfig)
		if err != nil {
			return nil, err
		}
		parts = append(parts, tr.Text)
		for _, c := range tr.Chunks {
			merged.Chunks = append(merged.Chunks, types.TranscriptChunk{
				Text:  c.Text,
				Start: c.Start + offset,
				End:   c.End + offset,
			})
		}
		offset += tr.Duration
		if merged.Language == "" {
			merged.Language = tr.Language
		}
		if chunk != audioPath {
			os.Remove(chunk)
		}
	}
	merged.Text = strings.Join(parts, " ")
	merged.Duration = offset
	return merged, nil
}

// correct builds the substitution set and applies it. Analyzer failures are
// absorbed: the deterministic corrections still run.
func (p *Pipeline) correct(ctx context.Context, log *slog.Logger, cleaned string) (string, []transcript.Correction, error) {
	var pairs []transcript.Pair
	for _, a := range p.dict.Aliases() {
		pairs = append(pairs, transcript.Pair{Observed: a.Observed, Canonical: a.Canonical})
	}

	learned, err := p.corrections.All(ctx)
	if err != nil {
		log.Warn("loading learned corrections failed", "error", err)
	} else {
		for _, c := range learned {
			pairs = append(pairs, transcript.Pair{Observed: c.Observed, Canonical: c.Canonical})
		}
	}

	analyzed, err := p.analyzer.Analyze(ctx, cleaned, p.dict)
	if err != nil {
		log.Warn("term analysis failed, applying known corrections only", "error", err)
	} else {
		pairs = append(pairs, analyzed...)
	}

	corrector, err := transcript.NewCorrector(pairs)
	if err != nil {
		return "", nil, fmt.Errorf("pipeline: build corrector: %w", err)
	}
	corrected, corrections := corrector.Apply(cleaned)
	return corrected, corrections, nil
}

// advance moves the run forward and announces the change.
func (p *Pipeline) advance(ctx context.Context, runID string, stage session.Stage) error {
	if err := p.store.SetStage(ctx, runID, stage); err != nil {
		return fmt.Errorf("pipeline: advance to %s: %w", stage, err)
	}
	p.broadcast.Publish(session.Event{RunID: runID, Stage: stage, At: p.now()})
	return nil
}

// timed wraps one stage body with a span and observer callbacks.
func (p *Pipeline) timed(ctx context.Context, stage session.Stage, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "pipeline."+string(stage))
	defer span.End()

	p.observer.StageStarted(stage)
	start := p.now()
	err := fn(ctx)
	p.observer.StageFinished(stage, p.now().Sub(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// makeArtifactDir creates <output_dir>/<timestamp>_<title>/.
func (p *Pipeline) makeArtifactDir(title string) (string, error) {
	name := fmt.Sprintf("%s_%s", p.now().Format("20060102_150405"), download.SanitizeTitle(title))
	dir := filepath.Join(p.outputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: create artifact dir: %w", err)
	}
	return dir, nil
}

func (p *Pipeline) writeArtifact(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", name, err)
	}
	return nil
}
