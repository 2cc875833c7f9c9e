// Package rag provides chunking and BM25 ranking for the retrieval step
// of the analysis funnel.
package rag

// Chunking window sizes in characters.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Chunk splits text into sliding windows of chunkSize characters with
// overlap characters shared between neighbors. Window boundaries snap
// back to the nearest space when one is close, so words stay whole.
func Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}
	if len(text) <= chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		// Snap the cut back to a space when one is nearby
		cut := end
		for cut > start+chunkSize/2 && text[cut-1] != ' ' {
			cut--
		}
		if cut == start+chunkSize/2 {
			cut = end
		}
		chunks = append(chunks, text[start:cut])
	}
	return chunks
}
