package rag

import (
	"math"
	"sort"
	"strings"
)

// BM25 parameters. k1 controls term-frequency saturation, b length
// normalization.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// DefaultTopK is how many chunks are handed to the answer extractor.
const DefaultTopK = 3

// RankedChunk pairs a chunk with its BM25 score against a query.
type RankedChunk struct {
	Text  string
	Score float64
	Index int
}

// Rank scores every chunk against the query with BM25 and returns the
// top k, best first. Ties break on the original chunk order, so results
// are deterministic for fixed inputs.
func Rank(query string, chunks []string, k int) []RankedChunk {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(chunks) == 0 {
		return nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	docs := make([][]string, len(chunks))
	totalLen := 0
	for i, c := range chunks {
		docs[i] = Tokenize(c)
		totalLen += len(docs[i])
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return nil
	}

	// Document frequency per query token
	df := make(map[string]int, len(queryTokens))
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, t := range doc {
			seen[t] = true
		}
		for _, qt := range queryTokens {
			if seen[qt] {
				df[qt]++
			}
		}
	}

	n := float64(len(docs))
	ranked := make([]RankedChunk, 0, len(chunks))
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, t := range doc {
			tf[t]++
		}

		score := 0.0
		docLen := float64(len(doc))
		for _, qt := range queryTokens {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			idf := math.Log((n-float64(df[qt])+0.5)/(float64(df[qt])+0.5) + 1)
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		if score > 0 {
			ranked = append(ranked, RankedChunk{Text: chunks[i], Score: score, Index: i})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Tokenize lowercases and splits on whitespace, trimming punctuation
// from token edges.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'`")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
