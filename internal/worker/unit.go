package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/oracle"
	"github.com/qs3c/bug_triage_server/internal/pkg/chunk"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

// unitState 分组单元状态，stateFailed 为终态
type unitState int

const (
	statePending unitState = iota
	stateChunked
	stateAnalyzed
	stateRefining
	statePersisted
	stateDone
	stateFailed
)

var unitStateNames = [...]string{"PENDING", "CHUNKED", "ANALYZED", "REFINING", "PERSISTED", "DONE", "FAILED"}

func (s unitState) String() string {
	if s < 0 || int(s) >= len(unitStateNames) {
		return fmt.Sprintf("unitState(%d)", int(s))
	}
	return unitStateNames[s]
}

// groupUnit 一个关联分组
type groupUnit struct {
	index int // 从 1 开始
	total int
	files []candidate

	state unitState
	steps int // 已完成的进度节点数
}

func (u *groupUnit) advance(to unitState) {
	if u.state == stateFailed {
		return
	}
	u.state = to
}

func (u *groupUnit) label() string {
	return fmt.Sprintf("Group %d/%d", u.index, u.total)
}

// runUnit 执行一个分组，panic 在这里被捕获，不影响其他分组
func (p *Pipeline) runUnit(ctx context.Context, msg *queue.JobMessage, t *tracker, u *groupUnit) (final unitState) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Job %s: %s panicked: %v", msg.JobID, u.label(), r)
			u.state = stateFailed
		}
		if u.state == stateFailed {
			// 失败分组补齐剩余进度节点
			for u.steps < milestonesPerGroup {
				u.steps++
				t.step(fmt.Sprintf("%s failed", u.label()))
			}
		}
		final = u.state
	}()

	files, chunks := p.chunkFiles(msg.JobID, u.files)
	if len(files) == 0 {
		log.Printf("Job %s: %s has no readable files", msg.JobID, u.label())
		u.state = stateFailed
		return
	}
	u.files = files
	u.advance(stateChunked)

	u.steps++
	t.step("Analyzing " + u.label())
	analysis := p.analyze(ctx, msg.JobID, u, chunks)
	u.advance(stateAnalyzed)

	u.advance(stateRefining)
	u.steps++
	t.step("Running Sanity Check on " + u.label())
	type result struct {
		file              candidate
		original, refined model.Findings
	}
	results := make([]result, 0, len(u.files))
	for _, f := range u.files {
		original := analysis.For(f.ID)
		results = append(results, result{file: f, original: original, refined: p.refine(ctx, msg.JobID, f.ID, original)})
	}

	saved := 0
	for _, r := range results {
		rec := &model.FileAnalysis{
			JobID:            msg.JobID,
			File:             r.file.ID,
			OriginalFilename: r.file.OriginalFilename,
			UserID:           msg.UserID,
			Username:         msg.Username,
			ProjectID:        msg.ProjectID,
			Description:      msg.Description,
		}
		rec.SetFindings(r.original, r.refined)
		if err := p.records.Upsert(rec); err != nil {
			log.Printf("Job %s: failed to save %s: %v", msg.JobID, r.file.ID, err)
			continue
		}
		saved++
	}
	u.advance(statePersisted)

	u.steps++
	t.step(fmt.Sprintf("Saved %s (%d/%d files)", u.label(), saved, len(results)))
	u.advance(stateDone)
	log.Printf("Job %s: %s done, %d/%d files saved", msg.JobID, u.label(), saved, len(results))
	return
}

// chunkFiles 读取并切分分组内文件，无法读取的文件跳过
func (p *Pipeline) chunkFiles(jobID string, files []candidate) ([]candidate, []chunk.Chunk) {
	readable := make([]candidate, 0, len(files))
	var chunks []chunk.Chunk
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			log.Printf("Job %s: cannot read %s: %v", jobID, f.ID, err)
			continue
		}
		lines := chunk.SplitLines(strings.ToValidUTF8(string(data), "\uFFFD"))
		chunks = append(chunks, p.chunker.Split(f.ID, lines)...)
		readable = append(readable, f)
	}
	return readable, chunks
}

func (p *Pipeline) analyze(ctx context.Context, jobID string, u *groupUnit, chunks []chunk.Chunk) oracle.AnalysisResult {
	if len(chunks) == 0 {
		return oracle.AnalysisResult{}
	}
	result := p.oracle.Analyze(ctx, chunks)
	if result.Failure != nil {
		log.Printf("Job %s: %s %s, using empty findings", jobID, u.label(), result.Failure)
	}
	return result
}

// refine 复核单个文件。失败时复核 bug 为空，优化建议沿用首轮结果
func (p *Pipeline) refine(ctx context.Context, jobID, fileID string, original model.Findings) model.Findings {
	refined := model.Findings{Optimizations: original.Optimizations}
	result := p.oracle.Refine(ctx, fileID, original.Bugs)
	if result.Failure != nil {
		log.Printf("Job %s: %s %s", jobID, fileID, result.Failure)
		return refined.Normalize()
	}
	refined.Bugs = result.Bugs
	if result.Optimizations != nil {
		refined.Optimizations = result.Optimizations
	}
	return refined.Normalize()
}
