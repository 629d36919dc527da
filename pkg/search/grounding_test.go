package search

import (
	"context"
	"testing"
)

func TestAddCitations(t *testing.T) {
	chunks := []Chunk{
		{URI: "https://a.com", Title: "A"},
		{URI: "https://b.com", Title: "B"},
		{URI: "https://c.com", Title: "C"},
	}

	tests := []struct {
		name     string
		text     string
		supports []Support
		want     string
	}{
		{
			name: "no supports",
			text: "Weight is 85 g.",
			want: "Weight is 85 g.",
		},
		{
			name: "single support",
			text: "Weight is 85 g. Size is 10 cm.",
			supports: []Support{
				{EndIndex: 15, ChunkIndices: []int{0, 2}},
			},
			want: "Weight is 85 g.[1](https://a.com), [3](https://c.com) Size is 10 cm.",
		},
		{
			name: "supports out of order",
			text: "AAA. BBB.",
			supports: []Support{
				{EndIndex: 9, ChunkIndices: []int{1}},
				{EndIndex: 4, ChunkIndices: []int{0}},
			},
			want: "AAA.[1](https://a.com) BBB.[2](https://b.com)",
		},
		{
			name: "overlapping spans",
			text: "one two three",
			supports: []Support{
				{StartIndex: 0, EndIndex: 7, ChunkIndices: []int{0}},
				{StartIndex: 4, EndIndex: 13, ChunkIndices: []int{1}},
				{StartIndex: 0, EndIndex: 3, ChunkIndices: []int{2}},
			},
			want: "one[3](https://c.com) two[1](https://a.com) three[2](https://b.com)",
		},
		{
			name: "same end offset keeps order",
			text: "abc",
			supports: []Support{
				{EndIndex: 3, ChunkIndices: []int{1}},
				{EndIndex: 3, ChunkIndices: []int{0}},
			},
			want: "abc[2](https://b.com)[1](https://a.com)",
		},
		{
			name: "out of range offset and chunk",
			text: "abc",
			supports: []Support{
				{EndIndex: 99, ChunkIndices: []int{0, 7}},
				{EndIndex: 1, ChunkIndices: []int{9}},
				{EndIndex: -5, ChunkIndices: []int{2}},
			},
			want: "[3](https://c.com)abc[1](https://a.com)",
		},
		{
			name: "offset inside rune",
			text: "héllo",
			supports: []Support{
				{EndIndex: 2, ChunkIndices: []int{0}},
			},
			want: "hé[1](https://a.com)llo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{Text: tt.text, Grounding: &Grounding{Supports: tt.supports, Chunks: chunks}}
			if got := AddCitations(resp); got != tt.want {
				t.Errorf("AddCitations() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestAddCitations_NoGrounding(t *testing.T) {
	if got := AddCitations(&Response{Text: "plain"}); got != "plain" {
		t.Errorf("got %q", got)
	}
	if got := AddCitations(nil); got != "" {
		t.Errorf("nil response gave %q", got)
	}
}

func TestGrounded(t *testing.T) {
	fb := &fakeBackend{resp: &Response{
		Text: "It weighs 85 g.",
		Grounding: &Grounding{
			Supports:         []Support{{EndIndex: 15, ChunkIndices: []int{0}}},
			Chunks:           []Chunk{{URI: "https://acme.com/xyz", Title: "Acme"}},
			WebSearchQueries: []string{"acme xyz-100 weight"},
		},
	}}

	r, err := New(fb).Grounded(context.Background(), "Acme XYZ-100")
	if err != nil {
		t.Fatalf("Grounded() error = %v", err)
	}
	if r.Query != "Acme XYZ-100" || r.Text != "It weighs 85 g." {
		t.Errorf("unexpected result %+v", r)
	}
	if r.TextWithCitations != "It weighs 85 g.[1](https://acme.com/xyz)" {
		t.Errorf("TextWithCitations = %q", r.TextWithCitations)
	}
	if r.SourcesCount != 1 || r.Sources[0].Title != "Acme" || r.SearchQueries[0] != "acme xyz-100 weight" {
		t.Errorf("unexpected sources %+v", r)
	}
}
