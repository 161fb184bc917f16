package ollama

import (
	"context"
	"log/slog"

	"intigra/internal/answer"
)

const DefaultGenerateModel = "tinyllama"

type Generator struct {
	client *Client
	model  string
}

func NewGenerator(c *Client, model string) *Generator {
	if model == "" {
		model = DefaultGenerateModel
	}
	return &Generator{client: c, model: model}
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// temperature is always sent: zero is meaningful.
type options struct {
	Temperature   float32  `json:"temperature"`
	TopP          float32  `json:"top_p,omitempty"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
	NumPredict    int      `json:"num_predict,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts answer.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
		Options: &options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: opts.RepeatPenalty,
			NumPredict:    opts.MaxTokens,
			Stop:          opts.Stop,
		},
	}

	var resp generateResponse
	if err := g.client.post(ctx, "/api/generate", req, &resp); err != nil {
		slog.ErrorContext(ctx, "generation failed", "model", g.model, "error", err)
		return "", err
	}
	return resp.Response, nil
}
