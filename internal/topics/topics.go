// Package topics implements the language-model topic extraction stage.
//
// The [Extractor] asks an [llm.Provider] to identify the main subjects of a
// corrected transcript and returns them as structured [Topic] values: a short
// label, supporting key points, a relevance grade, a category, and the
// model's confidence. The topic list feeds the summarizer as prompt context
// and is exposed verbatim in run results.
//
// Topic extraction is best-effort: an unparseable model response yields an
// empty list rather than an error, and individual malformed entries are
// dropped while the rest survive.
package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	llm "github.com/hzn-labs/horizonsum/pkg/provider/llm"
)

const (
	defaultTemperature = 0.3
	defaultMaxTopics   = 10
	defaultMaxTokens   = 2048

	// Defaults applied to entries the model leaves incomplete.
	defaultRelevance  = "medium"
	defaultConfidence = 0.7
)

// Topic is one extracted subject with its supporting metadata.
type Topic struct {
	// Topic is a short label for the subject (1-5 words).
	Topic string `json:"topic"`

	// KeyPoints summarise what was said about the subject.
	KeyPoints []string `json:"key_points,omitempty"`

	// Relevance grades the subject's importance: "high", "medium", or "low".
	Relevance string `json:"relevance"`

	// Category is a free-form grouping such as "Governance" or "Product".
	Category string `json:"category,omitempty"`

	// Confidence is the model's certainty that the subject was discussed
	// (0.0-1.0).
	Confidence float64 `json:"confidence"`
}

const systemPrompt = `You are an AI assistant skilled at identifying key topics within lengthy transcripts of community calls and live streams. Your goal is to extract a structured list of the most relevant subjects discussed with supporting information. Output must be a valid JSON array of topic objects.`

const promptTemplate = `Analyze the following transcript and identify the main topics discussed.

**Transcript:**
` + "```" + `
%s
` + "```" + `

**Instructions:**
1. Read the transcript carefully to understand the key subjects, themes, and announcements.
2. Identify the most important topics covered, focusing on specific subjects, projects, announcements, or discussions.
3. For each topic:
   - Create a concise topic label (1-5 words)
   - Identify 1-3 key points that summarize what was discussed about this topic
   - Assess the relevance/importance (high, medium, low) based on discussion time and emphasis
   - Suggest an appropriate category for the topic (e.g., "Governance", "Development", "Community", "Product")
   - Include a confidence score (0.0-1.0) indicating your certainty about this topic's presence
4. Return ONLY a valid JSON array of objects in the format shown in the example below.
5. Aim for approximately %d topics, but adjust based on the content's density.
6. Focus on extracting specific, actionable information rather than general themes.
7. If the transcript is too short or lacks clear topics, return an empty JSON array.

**Example Output Format:**
` + "```json" + `
[
  {
    "topic": "Launchpad Updates",
    "key_points": [
      "Three new projects were voted into the launchpad",
      "Application process is being streamlined"
    ],
    "relevance": "high",
    "category": "Governance",
    "confidence": 0.95
  }
]
` + "```" + `

**JSON Response:**`

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the LLM sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(e *Extractor) {
		e.temperature = temp
	}
}

// WithMaxTopics sets the approximate topic count requested from the model.
// Default: 10.
func WithMaxTopics(n int) Option {
	return func(e *Extractor) {
		e.maxTopics = n
	}
}

// Extractor extracts structured topics from transcripts using an
// [llm.Provider]. It is safe for concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
	maxTopics   int
}

// New returns an [Extractor] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		llm:         provider,
		temperature: defaultTemperature,
		maxTopics:   defaultMaxTopics,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract asks the model for the main topics of text.
//
// An unparseable model response yields a nil slice and a nil error. Context
// cancellation and transport errors are returned as non-nil errors.
func (e *Extractor) Extract(ctx context.Context, text string) ([]Topic, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  e.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, text, e.maxTopics)},
		},
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("topics: complete: %w", err)
	}

	parsed, parseErr := parseResponse(resp.Content)
	if parseErr != nil {
		return nil, nil //nolint:nilerr // intentional graceful fallback
	}
	return parsed, nil
}

// wireTopic tolerates the model returning key_points as a bare string
// instead of an array.
type wireTopic struct {
	Topic      string          `json:"topic"`
	KeyPoints  json.RawMessage `json:"key_points"`
	Relevance  string          `json:"relevance"`
	Category   string          `json:"category"`
	Confidence *float64        `json:"confidence"`
}

// parseResponse unmarshals the model output, dropping malformed entries and
// filling defaults for missing optional fields.
func parseResponse(content string) ([]Topic, error) {
	cleaned := stripMarkdown(content)

	var wire []wireTopic
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("topics: parse response: %w", err)
	}

	out := make([]Topic, 0, len(wire))
	for _, w := range wire {
		if strings.TrimSpace(w.Topic) == "" {
			continue
		}
		t := Topic{
			Topic:      w.Topic,
			KeyPoints:  parseKeyPoints(w.KeyPoints),
			Relevance:  w.Relevance,
			Category:   w.Category,
			Confidence: defaultConfidence,
		}
		if t.Relevance == "" {
			t.Relevance = defaultRelevance
		}
		if w.Confidence != nil {
			t.Confidence = *w.Confidence
		}
		out = append(out, t)
	}
	return out, nil
}

// parseKeyPoints accepts either a JSON array of strings or a single string.
func parseKeyPoints(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// stripMarkdown removes optional markdown code fences around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// Strings returns just the topic labels, for callers that need a flat list.
func Strings(topics []Topic) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t.Topic != "" {
			out = append(out, t.Topic)
		}
	}
	return out
}

// FormatForPrompt renders the topic list as a markdown block for inclusion
// in summarization prompts.
func FormatForPrompt(topics []Topic) string {
	if len(topics) == 0 {
		return "No topics identified."
	}

	var b strings.Builder
	for _, t := range topics {
		b.WriteString("- **" + t.Topic + "**")
		if t.Relevance != "" {
			b.WriteString(" (" + t.Relevance + ")")
		}
		b.WriteString("\n")
		for _, kp := range t.KeyPoints {
			b.WriteString("  - " + kp + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
