package search

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiBackend implements Backend on the Gemini API. Grounding uses the
// Google Search tool and structured output uses a response schema.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, cfg BackendConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["gemini"]
	}

	return &GeminiBackend{client: client, model: model}, nil
}

// Generate sends req to Gemini.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.Prompt), b.config(req))
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	out := &Response{
		Text:     resp.Text(),
		Model:    b.model,
		Duration: time.Since(start),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		out.FinishReason = string(cand.FinishReason)
		out.Grounding = groundingFromGenAI(cand.GroundingMetadata)
	}
	return out, nil
}

func (b *GeminiBackend) config(req Request) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Sampling.Temperature)),
		TopP:        genai.Ptr(float32(req.Sampling.TopP)),
	}
	if req.Sampling.TopK > 0 {
		gc.TopK = genai.Ptr(float32(req.Sampling.TopK))
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Grounded {
		gc.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = req.Schema.ToGenAISchema()
	}
	return gc
}

// groundingFromGenAI converts grounding metadata. Chunk positions are kept
// so support indices stay valid; non-web chunks become empty entries.
func groundingFromGenAI(gm *genai.GroundingMetadata) *Grounding {
	if gm == nil {
		return nil
	}

	g := &Grounding{WebSearchQueries: gm.WebSearchQueries}
	for _, c := range gm.GroundingChunks {
		var chunk Chunk
		if c != nil && c.Web != nil {
			chunk = Chunk{URI: c.Web.URI, Title: c.Web.Title}
		}
		g.Chunks = append(g.Chunks, chunk)
	}
	for _, s := range gm.GroundingSupports {
		if s == nil || s.Segment == nil {
			continue
		}
		sup := Support{
			StartIndex: int(s.Segment.StartIndex),
			EndIndex:   int(s.Segment.EndIndex),
			Text:       s.Segment.Text,
		}
		for _, idx := range s.GroundingChunkIndices {
			sup.ChunkIndices = append(sup.ChunkIndices, int(idx))
		}
		g.Supports = append(g.Supports, sup)
	}
	return g
}

// Name returns the backend identifier.
func (b *GeminiBackend) Name() string { return "gemini" }

// Model returns the configured model name.
func (b *GeminiBackend) Model() string { return b.model }

var _ Backend = (*GeminiBackend)(nil)
