package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicMaxTokens = 4096
	recordToolName     = "record_result"
)

// AnthropicBackend implements Backend for the Anthropic messages API.
// Structured output is obtained by forcing a tool call whose input schema is
// the response schema. There is no live web grounding.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(cfg BackendConfig) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Generate sends req to Anthropic.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(req.Sampling.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.Schema != nil {
		js, err := req.Schema.ToJSONSchema()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JSON schema: %w", err)
		}
		required, _ := js["required"].([]string)

		params.Tools = []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        recordToolName,
					Description: anthropic.String("Record the structured answer"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: js["properties"],
						Required:   required,
					},
				},
			},
		}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(recordToolName)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		switch blk := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += blk.Text
		case anthropic.ToolUseBlock:
			// The tool input is the structured answer.
			data, err := json.Marshal(blk.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			text = string(data)
		}
	}

	return &Response{
		Text:         text,
		FinishReason: string(resp.StopReason),
		Model:        string(resp.Model),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string { return "anthropic" }

// Model returns the configured model name.
func (b *AnthropicBackend) Model() string { return b.model }

var _ Backend = (*AnthropicBackend)(nil)
