package chunk

import (
	"fmt"
	"strings"
)

const (
	DefaultSmallFileLines = 300
	DefaultChunkLines     = 400
)

// Chunker 按行数切分文件。小文件整体作为一个分片，大文件按固定行数切分
type Chunker struct {
	SmallFileLines int
	ChunkLines     int
}

// New 创建切分器，非正数参数使用默认值
func New(smallFileLines, chunkLines int) Chunker {
	if smallFileLines <= 0 {
		smallFileLines = DefaultSmallFileLines
	}
	if chunkLines <= 0 {
		chunkLines = DefaultChunkLines
	}
	return Chunker{SmallFileLines: smallFileLines, ChunkLines: chunkLines}
}

// Range 半开区间 [Start, End)，行号从 0 开始
type Range struct {
	Start int
	End   int
}

// Chunk 一个文件的连续行片段
type Chunk struct {
	FileID string
	Start  int
	End    int
	Lines  []string
}

// Header 提示词中的分片标题，行号从 1 开始
func (c Chunk) Header() string {
	return fmt.Sprintf("File: %s (Lines %d-%d)", c.FileID, c.Start+1, c.End)
}

// Text 分片内容
func (c Chunk) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Budget 单个分片的行数
func (c Chunker) Budget(n int) int {
	if n <= c.SmallFileLines {
		return n
	}
	return c.ChunkLines
}

// Plan 计算覆盖 [0, n) 的连续不重叠区间
func (c Chunker) Plan(n int) []Range {
	if n <= 0 {
		return nil
	}
	budget := c.Budget(n)
	ranges := make([]Range, 0, (n+budget-1)/budget)
	for start := 0; start < n; start += budget {
		end := start + budget
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// Split 按计划切分文件行
func (c Chunker) Split(fileID string, lines []string) []Chunk {
	ranges := c.Plan(len(lines))
	chunks := make([]Chunk, 0, len(ranges))
	for _, r := range ranges {
		chunks = append(chunks, Chunk{
			FileID: fileID,
			Start:  r.Start,
			End:    r.End,
			Lines:  lines[r.Start:r.End],
		})
	}
	return chunks
}

// SplitLines 按 \n 或 \r\n 分行，末尾换行不产生空行
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
