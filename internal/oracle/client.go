package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/pkg/chunk"
	"github.com/qs3c/bug_triage_server/internal/pkg/llm"
)

const defaultTimeout = 120 * time.Second

// Client 分组、分析、复核三类调用。任何失败都以 ParseFailure 返回，不会 panic 也不会返回 error
type Client struct {
	llm     llm.Client
	timeout time.Duration
}

func New(c llm.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{llm: c, timeout: timeout}
}

func (c *Client) call(ctx context.Context, stage, system, prompt string) (string, *ParseFailure) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.llm.Generate(ctx, system, prompt)
	if err != nil {
		return "", &ParseFailure{Stage: stage, Kind: KindOracle, Reason: err.Error()}
	}
	out = strings.TrimSpace(llm.CleanJSONBlock(out))
	if out == "" {
		return "", &ParseFailure{Stage: stage, Kind: KindOracle, Reason: llm.ErrEmptyResponse.Error()}
	}
	return out, nil
}

// Group 根据文件预览划分关联分组
func (c *Client) Group(ctx context.Context, previews []FilePreview) GroupResult {
	raw, failure := c.call(ctx, StageGroup, groupSystem, groupPrompt(previews))
	if failure != nil {
		return GroupResult{Failure: failure}
	}
	return parseGroups(raw)
}

// Analyze 对一个分组的全部分块做首轮分析
func (c *Client) Analyze(ctx context.Context, chunks []chunk.Chunk) AnalysisResult {
	fileIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, ch := range chunks {
		if _, ok := seen[ch.FileID]; ok {
			continue
		}
		seen[ch.FileID] = struct{}{}
		fileIDs = append(fileIDs, ch.FileID)
	}

	raw, failure := c.call(ctx, StageAnalyze, analyzeSystem, analyzePrompt(chunks))
	if failure != nil {
		return AnalysisResult{Files: map[string]model.Findings{}, Failure: failure}
	}
	return parseAnalysis(raw, fileIDs)
}

// Refine 复核单个文件的 bug 列表
func (c *Client) Refine(ctx context.Context, fileID string, bugs []model.Bug) RefineResult {
	raw, failure := c.call(ctx, StageRefine, refineSystem, refinePrompt(fileID, bugs))
	if failure != nil {
		return RefineResult{Failure: failure}
	}
	return parseRefine(raw)
}
