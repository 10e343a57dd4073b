package service

import (
	"fmt"
	"unicode"
)

// ChunkSpan is one window over the source text. Offsets are half-open
// character ranges.
type ChunkSpan struct {
	Index   int
	Start   int
	End     int
	Content string
}

// Chunker splits text into overlapping fixed-size windows, nudging each
// boundary to the nearest natural break inside the tail 20% of the window.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

// NewChunker builds a chunker, applying sane defaults for zero values.
func NewChunker(size, overlap, minSize int) *Chunker {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	if minSize <= 0 || minSize > size {
		minSize = size / 15
		if minSize < 1 {
			minSize = 1
		}
	}
	return &Chunker{size: size, overlap: overlap, minSize: minSize}
}

// Split produces the chunk spans for text. The spans are ordered, start at
// 0, end at len(text) and their union covers the whole text.
func (c *Chunker) Split(text string) []ChunkSpan {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var spans []ChunkSpan
	start := 0
	for index := 0; start < n; index++ {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.nudge(runes, start, end)
		}

		spans = append(spans, ChunkSpan{
			Index:   index,
			Start:   start,
			End:     end,
			Content: string(runes[start:end]),
		})
		if end >= n {
			break
		}

		// Step back by the overlap, floored to guarantee forward progress.
		next := end - c.overlap
		if next < start+c.minSize {
			next = start + c.minSize
		}
		start = next
	}
	return spans
}

// nudge moves the window end backward to the best natural break within the
// tail 20% of the window: blank line, then sentence terminator followed by
// a capital, then line break, then word boundary, else the raw target.
func (c *Chunker) nudge(runes []rune, start, target int) int {
	low := target - c.size/5
	if low <= start {
		low = start + 1
	}

	paragraph, sentence, newline, word := -1, -1, -1, -1
	for i := target; i > low; i-- {
		prev := runes[i-1]
		if paragraph < 0 && prev == '\n' && i >= 2 && runes[i-2] == '\n' {
			paragraph = i
			break
		}
		if sentence < 0 && isSentenceEnd(runes, i) {
			sentence = i
		}
		if newline < 0 && prev == '\n' {
			newline = i
		}
		if word < 0 && unicode.IsSpace(prev) {
			word = i
		}
	}

	switch {
	case paragraph > 0:
		return paragraph
	case sentence > 0:
		return sentence
	case newline > 0:
		return newline
	case word > 0:
		return word
	default:
		return target
	}
}

// isSentenceEnd reports whether a cut at i lands right after a sentence
// terminator whose following text starts with a capital letter.
func isSentenceEnd(runes []rune, i int) bool {
	prev := runes[i-1]
	if prev != '.' && prev != '!' && prev != '?' {
		return false
	}
	for j := i; j < len(runes); j++ {
		if unicode.IsSpace(runes[j]) {
			continue
		}
		return unicode.IsUpper(runes[j])
	}
	return false
}

// ValidateChunks enforces the post-hoc chunk invariants: consecutive
// indices from 0, non-empty content, offsets inside text bounds, strictly
// increasing, full coverage from 0 to textLen.
func ValidateChunks(spans []ChunkSpan, textLen int) error {
	if len(spans) == 0 {
		if textLen == 0 {
			return nil
		}
		return fmt.Errorf("no chunks produced for %d chars of text", textLen)
	}
	for i, span := range spans {
		if span.Index != i {
			return fmt.Errorf("chunk %d has index %d", i, span.Index)
		}
		if span.Content == "" {
			return fmt.Errorf("chunk %d has empty content", i)
		}
		if span.Start < 0 || span.End > textLen {
			return fmt.Errorf("chunk %d offsets [%d,%d) outside text bounds", i, span.Start, span.End)
		}
		if span.Start >= span.End {
			return fmt.Errorf("chunk %d has inverted offsets [%d,%d)", i, span.Start, span.End)
		}
		if i > 0 {
			if span.Start <= spans[i-1].Start || span.End <= spans[i-1].End {
				return fmt.Errorf("chunk %d offsets not strictly increasing", i)
			}
			if span.Start > spans[i-1].End {
				return fmt.Errorf("gap between chunk %d and %d", i-1, i)
			}
		}
	}
	if spans[0].Start != 0 {
		return fmt.Errorf("first chunk starts at %d, want 0", spans[0].Start)
	}
	if last := spans[len(spans)-1]; last.End != textLen {
		return fmt.Errorf("last chunk ends at %d, want %d", last.End, textLen)
	}
	return nil
}
