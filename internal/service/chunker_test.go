package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(100, 20, 10)
	require.Nil(t, c.Split(""))
	require.NoError(t, ValidateChunks(nil, 0))
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(100, 20, 10)
	spans := c.Split("short text")
	require.Len(t, spans, 1)
	require.Equal(t, 0, spans[0].Start)
	require.Equal(t, 10, spans[0].End)
	require.Equal(t, "short text", spans[0].Content)
}

func TestChunkerCoverageInvariants(t *testing.T) {
	texts := []string{
		strings.Repeat("word ", 500),
		strings.Repeat("A sentence here. ", 120),
		strings.Repeat("para one\n\npara two\n\n", 60),
		strings.Repeat("x", 1000),
		"exactly one line under the window",
	}
	configs := [][3]int{{100, 20, 10}, {250, 50, 25}, {64, 16, 8}}

	for _, text := range texts {
		for _, cfg := range configs {
			c := NewChunker(cfg[0], cfg[1], cfg[2])
			spans := c.Split(text)
			require.NoError(t, ValidateChunks(spans, len([]rune(text))), "size=%d text=%q...", cfg[0], text[:20])

			// Every chunk's content matches its offsets.
			runes := []rune(text)
			for _, span := range spans {
				require.Equal(t, string(runes[span.Start:span.End]), span.Content)
			}
		}
	}
}

func TestChunkerPrefersParagraphBreak(t *testing.T) {
	// A blank line sits inside the tail 20% of the 100-char window.
	text := strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 200)
	c := NewChunker(100, 10, 10)
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)
	require.Equal(t, 92, spans[0].End, "first chunk should end just after the blank line")
}

func TestChunkerPrefersSentenceOverWordBreak(t *testing.T) {
	// Both a sentence end and later word breaks fall in the tail zone.
	text := strings.Repeat("a", 85) + ". Next sentence continues here and keeps going well past the window"
	c := NewChunker(100, 10, 10)
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)
	require.Equal(t, 86, spans[0].End, "cut should land right after the sentence terminator")
}

func TestChunkerForwardProgressOnPathologicalOverlap(t *testing.T) {
	// Overlap nearly as large as the window must still advance by minSize.
	text := strings.Repeat("z", 400)
	c := NewChunker(100, 95, 30)
	spans := c.Split(text)
	require.NoError(t, ValidateChunks(spans, 400))
	for i := 1; i < len(spans); i++ {
		require.GreaterOrEqual(t, spans[i].Start-spans[i-1].Start, 30)
	}
}

func TestValidateChunksRejectsGaps(t *testing.T) {
	spans := []ChunkSpan{
		{Index: 0, Start: 0, End: 10, Content: "0123456789"},
		{Index: 1, Start: 15, End: 20, Content: "56789"},
	}
	require.Error(t, ValidateChunks(spans, 20))
}

func TestValidateChunksRejectsBadIndices(t *testing.T) {
	spans := []ChunkSpan{
		{Index: 0, Start: 0, End: 10, Content: "0123456789"},
		{Index: 2, Start: 8, End: 20, Content: "x"},
	}
	require.Error(t, ValidateChunks(spans, 20))
}

func TestValidateChunksRejectsEmptyContent(t *testing.T) {
	spans := []ChunkSpan{{Index: 0, Start: 0, End: 10, Content: ""}}
	require.Error(t, ValidateChunks(spans, 10))
}
