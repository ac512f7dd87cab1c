// Package chunk splits extracted text into overlapping fixed-size segments.
//
// Segments are the unit of embedding and retrieval: each one becomes a chunk
// row with a contiguous 0-based index. The splitter is a pure function with
// no I/O so chunking behavior is trivially testable.
package chunk

import "fmt"

// Default chunking parameters, matching the indexing pipeline defaults.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Split divides text into segments of at most size characters, where each
// segment after the first starts overlap characters before the end of the
// previous one. The final segment may be shorter than size. Empty input
// yields no segments.
//
// Split panics if size <= 0 or overlap is not in [0, size); both are
// programmer errors caught by config validation long before indexing runs.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		panic(fmt.Sprintf("chunk: size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		panic(fmt.Sprintf("chunk: overlap must be in [0, size), got overlap=%d size=%d", overlap, size))
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var segments []string
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			segments = append(segments, string(runes[start:]))
			return segments
		}
		segments = append(segments, string(runes[start:end]))
		// The next window starts overlap characters back from where this
		// one ended. overlap < size guarantees forward progress.
		start = end - overlap
	}
}
