package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Grounding is the web evidence attached to a grounded response.
type Grounding struct {
	Supports         []Support
	Chunks           []Chunk
	WebSearchQueries []string
}

// Support ties a span of the response text to the chunks backing it.
// Offsets are byte offsets into Response.Text.
type Support struct {
	StartIndex   int
	EndIndex     int
	Text         string
	ChunkIndices []int
}

// Chunk is a retrieved web source.
type Chunk struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

// AddCitations returns resp.Text with citation markers such as
// "[1](https://a), [3](https://c)" inserted after every supported span.
//
// Markers are placed in a single pass over the original text, so spans may
// overlap or share an end offset without shifting one another. Markers for
// spans ending at the same offset appear in support order. Offsets past the
// end of the text are clamped, and offsets inside a multi-byte rune move to
// the next rune boundary.
func AddCitations(resp *Response) string {
	if resp == nil {
		return ""
	}
	text := resp.Text
	g := resp.Grounding
	if g == nil || len(g.Supports) == 0 || len(g.Chunks) == 0 {
		return text
	}

	type insertion struct {
		at     int
		marker string
	}
	inserts := make([]insertion, 0, len(g.Supports))
	for _, s := range g.Supports {
		marker := citationMarker(s.ChunkIndices, g.Chunks)
		if marker == "" {
			continue
		}
		inserts = append(inserts, insertion{at: clampOffset(text, s.EndIndex), marker: marker})
	}
	if len(inserts) == 0 {
		return text
	}
	sort.SliceStable(inserts, func(i, j int) bool { return inserts[i].at < inserts[j].at })

	var sb strings.Builder
	sb.Grow(len(text) + len(inserts)*32)
	prev := 0
	for _, ins := range inserts {
		sb.WriteString(text[prev:ins.at])
		sb.WriteString(ins.marker)
		prev = ins.at
	}
	sb.WriteString(text[prev:])
	return sb.String()
}

func citationMarker(indices []int, chunks []Chunk) string {
	links := make([]string, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(chunks) {
			continue
		}
		links = append(links, "["+strconv.Itoa(i+1)+"]("+chunks[i].URI+")")
	}
	return strings.Join(links, ", ")
}

func clampOffset(text string, at int) int {
	if at < 0 {
		return 0
	}
	if at >= len(text) {
		return len(text)
	}
	for at < len(text) && !utf8.RuneStart(text[at]) {
		at++
	}
	return at
}

// GroundedResult is a grounded answer together with its evidence.
type GroundedResult struct {
	Query             string   `json:"query" yaml:"query"`
	Text              string   `json:"text" yaml:"text"`
	TextWithCitations string   `json:"text_with_citations" yaml:"text_with_citations"`
	SourcesCount      int      `json:"sources_count" yaml:"sources_count"`
	SearchQueries     []string `json:"search_queries,omitempty" yaml:"search_queries,omitempty"`
	Sources           []Chunk  `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Grounded runs Search and collects the answer, the cited text and the
// sources used.
func (c *Client) Grounded(ctx context.Context, query string) (*GroundedResult, error) {
	resp, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return NewGroundedResult(query, resp), nil
}

// NewGroundedResult builds a GroundedResult from a search response.
func NewGroundedResult(query string, resp *Response) *GroundedResult {
	r := &GroundedResult{
		Query:             query,
		Text:              resp.Text,
		TextWithCitations: AddCitations(resp),
	}
	if g := resp.Grounding; g != nil {
		r.SourcesCount = len(g.Chunks)
		r.SearchQueries = g.WebSearchQueries
		r.Sources = g.Chunks
	}
	return r
}
