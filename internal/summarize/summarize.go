// Package summarize turns a corrected transcript into publishable summary
// drafts.
//
// A [Summarizer] renders one of the operator's prompt templates (managed by
// [TemplateStore]) with the transcript, the extracted topic list, and the
// terminology reference, then asks a language model for several independent
// drafts. Generation runs through a [resilience.FallbackGroup] so a failing
// primary model degrades to the configured fallback instead of losing an
// expensive pipeline run.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/hzn-labs/horizonsum/internal/resilience"
	"github.com/hzn-labs/horizonsum/internal/term"
	"github.com/hzn-labs/horizonsum/internal/topics"
	llm "github.com/hzn-labs/horizonsum/pkg/provider/llm"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 8192
	defaultMaxVariants = 5

	// Topics below this confidence are left out of the prompt.
	topicConfidenceFloor = 0.7
)

// Template placeholders.
const (
	placeholderTranscript = "{TRANSCRIPT}"
	placeholderTopics     = "{TOPICS}"
	placeholderContext    = "{CONTEXT}"
)

const systemPrompt = `You are an expert summarizer specializing in community calls and live streams for crypto and DeFi projects. Your goal is to create clear, concise, and engaging summaries from transcripts.
IMPORTANT: Be extremely precise with project terminology and people names. If a name or term appears in the provided context lists, always use that exact spelling and capitalization.
Focus on key decisions, announcements, technical details, community sentiment, and action items. Use Markdown formatting for readability.`

// Option is a functional option for configuring a [Summarizer].
type Option func(*Summarizer)

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(temp float64) Option {
	return func(s *Summarizer) {
		s.temperature = temp
	}
}

// WithMaxVariants caps how many drafts a single Generate call may produce.
// Default: 5.
func WithMaxVariants(n int) Option {
	return func(s *Summarizer) {
		s.maxVariants = n
	}
}

// Summarizer generates summary drafts from transcripts. It is safe for
// concurrent use.
type Summarizer struct {
	group       *resilience.FallbackGroup[llm.Provider]
	templates   *TemplateStore
	temperature float64
	maxVariants int
}

// New returns a [Summarizer] that draws models from group and templates from
// store.
func New(group *resilience.FallbackGroup[llm.Provider], store *TemplateStore, opts ...Option) *Summarizer {
	s := &Summarizer{
		group:       group,
		templates:   store,
		temperature: defaultTemperature,
		maxVariants: defaultMaxVariants,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate produces count summary drafts of transcript using the named
// template. count is clamped to [1, max variants]. Each draft is an
// independent completion; drafts differ because the temperature is non-zero.
func (s *Summarizer) Generate(
	ctx context.Context,
	templateName string,
	transcript string,
	topicList []topics.Topic,
	dict *term.Dictionary,
	count int,
) ([]string, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("summarize: transcript must not be empty")
	}

	tmpl, err := s.templates.Get(templateName)
	if err != nil {
		return nil, err
	}
	prompt := renderPrompt(tmpl, transcript, topicList, dict)

	if count < 1 {
		count = 1
	}
	if count > s.maxVariants {
		count = s.maxVariants
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  s.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	}

	drafts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		resp, err := resilience.ExecuteWithResult(s.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
			return p.Complete(ctx, req)
		})
		if err != nil {
			return nil, fmt.Errorf("summarize: draft %d: %w", i+1, err)
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, fmt.Errorf("summarize: draft %d: model returned empty content", i+1)
		}
		drafts = append(drafts, strings.TrimSpace(resp.Content))
	}
	return drafts, nil
}

// renderPrompt substitutes the template placeholders.
func renderPrompt(tmpl, transcript string, topicList []topics.Topic, dict *term.Dictionary) string {
	out := strings.ReplaceAll(tmpl, placeholderTranscript, transcript)
	out = strings.ReplaceAll(out, placeholderTopics, formatTopics(topicList))
	out = strings.ReplaceAll(out, placeholderContext, formatContext(dict))
	return out
}

// formatTopics renders the topic list for the prompt, keeping only high and
// medium relevance entries with decent confidence.
func formatTopics(topicList []topics.Topic) string {
	var b strings.Builder
	for _, t := range topicList {
		if t.Relevance != "high" && t.Relevance != "medium" {
			continue
		}
		if t.Confidence < topicConfidenceFloor {
			continue
		}
		b.WriteString("\n### " + t.Topic + "\n")
		if len(t.KeyPoints) > 0 {
			b.WriteString("Key points:\n")
			for _, kp := range t.KeyPoints {
				b.WriteString("- " + kp + "\n")
			}
		}
		if t.Category != "" {
			b.WriteString("Category: " + t.Category + "\n")
		}
	}
	if b.Len() == 0 {
		return "No specific topics extracted"
	}
	return "\n\n**Key Topics:**\n" + b.String()
}

// formatContext renders the terminology reference, or an empty string when no
// dictionary is configured.
func formatContext(dict *term.Dictionary) string {
	if dict == nil {
		return ""
	}
	return dict.FormatForPrompt()
}
