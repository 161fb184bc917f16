// Package answer builds the grounding prompt from retrieved passages and turns
// the generative model's completion into an answer with provenance.
package answer

import (
	"context"
	"log/slog"
	"strings"

	"intigra/internal/apperr"
)

const NotFoundAnswer = "I could not find the information in the provided documents."

var stopSequences = []string{"TEXT:", "QUESTION:", "INSTRUCTION:"}

// Longest first so "Sure! Here's" is not left as "Here's".
var fillerPrefixes = []string{
	"Sure! Here's",
	"Sure!",
	"Here is",
	"Here’s",
	"Source 1:",
}

type GenerateOptions struct {
	Temperature   float32
	TopP          float32
	RepeatPenalty float32
	MaxTokens     int
	Stop          []string
}

// DefaultGenerateOptions is deterministic decoding with a short cap.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature:   0,
		TopP:          0.1,
		RepeatPenalty: 1.1,
		MaxTokens:     150,
		Stop:          append([]string(nil), stopSequences...),
	}
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Passage is one chunk chosen for the context block.
type Passage struct {
	DocumentID  string
	ChunkID     string
	Text        string
	Similarity  float64
	RerankScore *float64
}

// Score is the value the passage was ranked by.
func (p Passage) Score() float64 {
	if p.RerankScore != nil {
		return *p.RerankScore
	}
	return p.Similarity
}

type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
}

type Result struct {
	Answer  string
	Sources []Source
}

type Synthesizer struct {
	gen  Generator
	opts GenerateOptions
}

func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen, opts: DefaultGenerateOptions()}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []Passage) (*Result, error) {
	if len(passages) == 0 {
		return &Result{Answer: NotFoundAnswer, Sources: []Source{}}, nil
	}

	raw, err := s.gen.Generate(ctx, BuildPrompt(query, passages), s.opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrProcessing, "Answer generation failed", err)
	}
	ans := CleanAnswer(raw)
	slog.DebugContext(ctx, "answer generated", "chars", len(ans), "passages", len(passages))

	sources := make([]Source, len(passages))
	for i, p := range passages {
		sources[i] = Source{DocumentID: p.DocumentID, ChunkID: p.ChunkID, Score: p.Score()}
	}
	return &Result{Answer: ans, Sources: sources}, nil
}

// BuildPrompt concatenates passage texts without labels so the model has no
// "Source N" to cite.
func BuildPrompt(query string, passages []Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	var sb strings.Builder
	sb.WriteString("\nTEXT:\n")
	sb.WriteString(strings.Join(texts, "\n\n"))
	sb.WriteString("\n\nQUESTION:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nINSTRUCTION:\nGive only the answer from the TEXT above.\nIf not found, say:\n")
	sb.WriteString(NotFoundAnswer)
	sb.WriteString("\n\nANSWER:\n")
	return sb.String()
}

// CleanAnswer trims the completion and drops leading filler phrases.
func CleanAnswer(raw string) string {
	ans := strings.TrimSpace(raw)
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(ans, prefix) {
			ans = strings.TrimSpace(strings.TrimPrefix(ans, prefix))
		}
	}
	return ans
}
