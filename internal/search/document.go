package search

import "github.com/Aman-CERP/docrag/internal/store"

// DefaultSummaryChunks is the sample size used when none is given.
const DefaultSummaryChunks = 10

// Summarize picks up to maxChunks chunks from one document's ordered chunks
// for summarization: the first third, a window around the middle, and the
// last third. Overlapping picks are kept once, in selection order.
// Documents no larger than maxChunks are returned whole.
func Summarize(chunks []store.Chunk, maxChunks int) []store.Chunk {
	if maxChunks <= 0 {
		maxChunks = DefaultSummaryChunks
	}
	n := len(chunks)
	if n <= maxChunks {
		return append([]store.Chunk(nil), chunks...)
	}

	third := maxChunks / 3
	if third == 0 {
		return append([]store.Chunk(nil), chunks[:maxChunks]...)
	}
	sixth := maxChunks / 6

	picks := make([]store.Chunk, 0, 2*third+2*sixth)
	picks = append(picks, chunks[:third]...)
	midStart, midEnd := n/2-sixth, n/2+sixth
	if midStart < 0 {
		midStart = 0
	}
	if midEnd > n {
		midEnd = n
	}
	picks = append(picks, chunks[midStart:midEnd]...)
	picks = append(picks, chunks[n-third:]...)

	seen := make(map[int]struct{}, len(picks))
	out := make([]store.Chunk, 0, maxChunks)
	for _, c := range picks {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	if len(out) > maxChunks {
		out = out[:maxChunks]
	}
	return out
}
