package rag

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  The quick, brown FOX (jumped)!  ")
	want := []string{"the", "quick", "brown", "fox", "jumped"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize("  ... !! "); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
}

func TestChunkShortText(t *testing.T) {
	chunks := Chunk("short text", 100, 20)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Errorf("got %v, want single untouched chunk", chunks)
	}
}

func TestChunkEmptyText(t *testing.T) {
	if chunks := Chunk("", 100, 20); chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}
}

func TestChunkOverlap(t *testing.T) {
	// 100 words of 9 characters each, far beyond one window.
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("abcdefgh ")
	}
	text := b.String()

	chunks := Chunk(text, 200, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Every chunk fits the window and neighbors share text.
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d length %d exceeds window", i, len(c))
		}
	}
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i][len(chunks[i])-20:]
		if !strings.Contains(chunks[i+1], strings.TrimSpace(tail)) {
			t.Errorf("chunk %d and %d do not overlap", i, i+1)
		}
	}
}

func TestChunkCoversAllText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("word word word word ")
	}
	text := b.String()

	chunks := Chunk(text, 150, 30)
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Error("final chunk must reach the end of the text")
	}
	if !strings.HasPrefix(text, chunks[0]) {
		t.Error("first chunk must start at the beginning")
	}
}

func TestRankFindsRelevantChunk(t *testing.T) {
	chunks := []string{
		"The weather today is sunny with light winds.",
		"Quarterly revenue grew 24 percent on strong cloud demand.",
		"The cafeteria menu now includes vegetarian options.",
	}

	ranked := Rank("revenue growth cloud", chunks, 3)
	if len(ranked) == 0 {
		t.Fatal("expected at least one ranked chunk")
	}
	if ranked[0].Index != 1 {
		t.Errorf("top chunk index = %d, want 1 (%q)", ranked[0].Index, ranked[0].Text)
	}
}

func TestRankLimitsToTopK(t *testing.T) {
	chunks := []string{
		"apple banana", "apple cherry", "apple grape", "apple melon", "apple peach",
	}
	ranked := Rank("apple", chunks, 2)
	if len(ranked) != 2 {
		t.Errorf("got %d results, want 2", len(ranked))
	}
}

func TestRankNoMatches(t *testing.T) {
	chunks := []string{"alpha beta", "gamma delta"}
	if ranked := Rank("zeta", chunks, 3); len(ranked) != 0 {
		t.Errorf("expected no matches, got %v", ranked)
	}
}

func TestRankEmptyInputs(t *testing.T) {
	if got := Rank("query", nil, 3); got != nil {
		t.Errorf("expected nil for no chunks, got %v", got)
	}
	if got := Rank("", []string{"text"}, 3); got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
}

func TestRankDeterministic(t *testing.T) {
	chunks := []string{"tie one match", "tie two match", "tie three match"}
	a := Rank("match", chunks, 3)
	b := Rank("match", chunks, 3)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Index != b[i].Index {
			t.Errorf("order differs at %d: %d vs %d", i, a[i].Index, b[i].Index)
		}
	}
}
