package chunk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return lines
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, -1)
	assert.Equal(t, DefaultSmallFileLines, c.SmallFileLines)
	assert.Equal(t, DefaultChunkLines, c.ChunkLines)
}

func TestChunker_Plan(t *testing.T) {
	c := New(300, 400)

	tests := []struct {
		n          int
		wantChunks int
		lastEnd    int
	}{
		{n: 0, wantChunks: 0},
		{n: 1, wantChunks: 1, lastEnd: 1},
		{n: 300, wantChunks: 1, lastEnd: 300},
		{n: 301, wantChunks: 1, lastEnd: 301},
		{n: 400, wantChunks: 1, lastEnd: 400},
		{n: 401, wantChunks: 2, lastEnd: 401},
		{n: 1000, wantChunks: 3, lastEnd: 1000},
		{n: 1200, wantChunks: 3, lastEnd: 1200},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			ranges := c.Plan(tt.n)
			require.Len(t, ranges, tt.wantChunks)
			if tt.wantChunks == 0 {
				return
			}

			// 连续、覆盖、不重叠
			assert.Equal(t, 0, ranges[0].Start)
			for i := 1; i < len(ranges); i++ {
				assert.Equal(t, ranges[i-1].End, ranges[i].Start)
			}
			assert.Equal(t, tt.lastEnd, ranges[len(ranges)-1].End)

			budget := c.Budget(tt.n)
			for _, r := range ranges {
				assert.LessOrEqual(t, r.End-r.Start, budget)
			}
		})
	}
}

func TestChunker_Budget(t *testing.T) {
	c := New(300, 400)
	assert.Equal(t, 120, c.Budget(120))
	assert.Equal(t, 300, c.Budget(300))
	assert.Equal(t, 400, c.Budget(301))
}

func TestChunker_Split(t *testing.T) {
	c := New(300, 400)
	lines := makeLines(1000)

	chunks := c.Split("pkg/big.py", lines)
	require.Len(t, chunks, 3)

	assert.Equal(t, Range{0, 400}, Range{chunks[0].Start, chunks[0].End})
	assert.Equal(t, Range{400, 800}, Range{chunks[1].Start, chunks[1].End})
	assert.Equal(t, Range{800, 1000}, Range{chunks[2].Start, chunks[2].End})

	var total []string
	for _, ch := range chunks {
		assert.Equal(t, "pkg/big.py", ch.FileID)
		total = append(total, ch.Lines...)
	}
	assert.Equal(t, lines, total)

	assert.Equal(t, "File: pkg/big.py (Lines 401-800)", chunks[1].Header())
	assert.Equal(t, "line 801\nline 802", chunks[2].Text()[:len("line 801\nline 802")])
}

func TestChunker_SplitSmallFile(t *testing.T) {
	c := New(300, 400)
	chunks := c.Split("a.go", makeLines(120))
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 120, chunks[0].End)
}

func TestChunker_SplitEmpty(t *testing.T) {
	c := New(300, 400)
	assert.Empty(t, c.Split("empty.py", nil))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\r\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
	assert.Equal(t, []string{""}, SplitLines("\n"))
}
