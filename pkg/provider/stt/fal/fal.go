// Package fal provides an STT provider backed by the fal.ai queue API running
// the "wizper" Whisper model.
//
// A transcription is four HTTP round trips: upload the audio file to fal
// storage, submit a queue job referencing the uploaded URL, poll the job
// status until it leaves the queue, then fetch the result payload. Transient
// HTTP failures on each round trip are retried with exponential backoff.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hzn-labs/horizonsum/pkg/provider/stt"
	"github.com/hzn-labs/horizonsum/pkg/types"
)

const (
	defaultQueueBaseURL = "https://queue.fal.run"
	defaultRestBaseURL  = "https://rest.fal.ai"
	defaultModel        = "fal-ai/wizper"

	defaultPollInterval = 5 * time.Second
	defaultJobTimeout   = 30 * time.Minute
)

// Provider implements stt.Provider using the fal.ai queue API.
type Provider struct {
	apiKey       string
	model        string
	queueBaseURL string
	restBaseURL  string
	pollInterval time.Duration
	jobTimeout   time.Duration
	httpClient   *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides the default "fal-ai/wizper" model endpoint.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithQueueBaseURL overrides the queue API base URL. Used in tests.
func WithQueueBaseURL(url string) Option {
	return func(p *Provider) {
		p.queueBaseURL = url
	}
}

// WithRestBaseURL overrides the storage/REST API base URL. Used in tests.
func WithRestBaseURL(url string) Option {
	return func(p *Provider) {
		p.restBaseURL = url
	}
}

// WithPollInterval sets the delay between job status polls.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		p.pollInterval = d
	}
}

// WithJobTimeout caps how long a single transcription job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.jobTimeout = d
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// New constructs a fal.ai STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fal: apiKey must not be empty")
	}

	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		queueBaseURL: defaultQueueBaseURL,
		restBaseURL:  defaultRestBaseURL,
		pollInterval: defaultPollInterval,
		jobTimeout:   defaultJobTimeout,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// uploadInitResponse is the storage upload handshake payload.
type uploadInitResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// submitResponse is returned when a queue job is accepted.
type submitResponse struct {
	RequestID string `json:"request_id"`
}

// statusResponse is returned by the queue status endpoint.
type statusResponse struct {
	Status string `json:"status"` // IN_QUEUE, IN_PROGRESS, COMPLETED
}

// resultResponse is the wizper result payload. inferred_languages has been
// observed both as a bare string and as an array of codes, so it is decoded
// lazily in [resultResponse.language].
type resultResponse struct {
	Text              string          `json:"text"`
	InferredLanguages json.RawMessage `json:"inferred_languages,omitempty"`
	Chunks            []struct {
		Text      string     `json:"text"`
		Timestamp [2]float64 `json:"timestamp"`
	} `json:"chunks"`
}

// language returns the first inferred language code, or "" when the field is
// absent or has an unexpected shape.
func (r *resultResponse) language() string {
	if len(r.InferredLanguages) == 0 {
		return ""
	}
	var one string
	if json.Unmarshal(r.InferredLanguages, &one) == nil {
		return one
	}
	var many []string
	if json.Unmarshal(r.InferredLanguages, &many) == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioPath string, cfg stt.Config) (*types.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	audioURL, err := p.uploadFile(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("fal: upload %s: %w", filepath.Base(audioPath), err)
	}

	requestID, err := p.submitJob(ctx, audioURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("fal: submit job: %w", err)
	}

	if err := p.waitForCompletion(ctx, requestID); err != nil {
		return nil, fmt.Errorf("fal: job %s: %w", requestID, err)
	}

	result, err := p.fetchResult(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("fal: fetch result %s: %w", requestID, err)
	}

	transcript := &types.Transcript{
		Text:     result.Text,
		Language: result.language(),
	}
	for _, c := range result.Chunks {
		transcript.Chunks = append(transcript.Chunks, types.TranscriptChunk{
			Text:  c.Text,
			Start: time.Duration(c.Timestamp[0] * float64(time.Second)),
			End:   time.Duration(c.Timestamp[1] * float64(time.Second)),
		})
	}
	if n := len(transcript.Chunks); n > 0 {
		transcript.Duration = transcript.Chunks[n-1].End
	}
	return transcript, nil
}

// uploadFile pushes the audio file to fal storage and returns its public URL.
func (p *Provider) uploadFile(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	initBody, err := json.Marshal(map[string]string{
		"file_name":    filepath.Base(audioPath),
		"content_type": "audio/mpeg",
	})
	if err != nil {
		return "", err
	}

	var init uploadInitResponse
	err = p.doJSON(ctx, http.MethodPost,
		p.restBaseURL+"/storage/upload/initiate", bytes.NewReader(initBody), &init)
	if err != nil {
		return "", fmt.Errorf("initiate upload: %w", err)
	}
	if init.UploadURL == "" || init.FileURL == "" {
		return "", fmt.Errorf("initiate upload: empty upload_url or file_url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, init.UploadURL, f)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/mpeg")
	if info, err := f.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("put file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("put file: status %d: %s", resp.StatusCode, body)
	}

	return init.FileURL, nil
}

// submitJob enqueues a transcription job and returns the queue request ID.
func (p *Provider) submitJob(ctx context.Context, audioURL string, cfg stt.Config) (string, error) {
	args := map[string]string{"audio_url": audioURL}
	if cfg.Language != "" {
		args["language"] = cfg.Language
	}
	if cfg.Task != "" {
		args["task"] = cfg.Task
	}
	body, err := json.Marshal(args)
	if err != nil {
		return "", err
	}

	var sub submitResponse
	err = p.doJSON(ctx, http.MethodPost,
		p.queueBaseURL+"/"+p.model, bytes.NewReader(body), &sub)
	if err != nil {
		return "", err
	}
	if sub.RequestID == "" {
		return "", fmt.Errorf("empty request_id in response")
	}
	return sub.RequestID, nil
}

// waitForCompletion polls the status endpoint until the job leaves the queue.
func (p *Provider) waitForCompletion(ctx context.Context, requestID string) error {
	url := fmt.Sprintf("%s/%s/requests/%s/status", p.queueBaseURL, p.model, requestID)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		var status statusResponse
		if err := p.doJSON(ctx, http.MethodGet, url, nil, &status); err != nil {
			return fmt.Errorf("poll status: %w", err)
		}

		switch status.Status {
		case "COMPLETED":
			return nil
		case "IN_QUEUE", "IN_PROGRESS":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		default:
			return fmt.Errorf("job ended with status %q", status.Status)
		}
	}
}

// fetchResult retrieves the final payload of a completed job.
func (p *Provider) fetchResult(ctx context.Context, requestID string) (*resultResponse, error) {
	url := fmt.Sprintf("%s/%s/requests/%s", p.queueBaseURL, p.model, requestID)
	var result resultResponse
	if err := p.doJSON(ctx, http.MethodGet, url, nil, &result); err != nil {
		return nil, err
	}
	if result.Text == "" {
		return nil, fmt.Errorf("empty transcript text in result")
	}
	return &result, nil
}

// doJSON performs one authenticated JSON round trip with exponential backoff
// on transport errors and 5xx responses. 4xx responses fail immediately.
func (p *Provider) doJSON(ctx context.Context, method, url string, body io.Reader, target any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return err
		}
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(90*time.Second),
	), ctx)

	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Key "+p.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
		}

		if err := json.Unmarshal(respBody, target); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return backoff.Retry(operation, bo)
}

var _ stt.Provider = (*Provider)(nil)
