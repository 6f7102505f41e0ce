package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/oracle"
	"github.com/qs3c/bug_triage_server/internal/pkg/chunk"
	"github.com/qs3c/bug_triage_server/internal/pkg/cron"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

const (
	defaultConcurrentGroups = 4
	defaultPreviewBytes     = 500
	statusTimeout           = 5 * time.Second
)

// ResultStore 文件分析记录存储
type ResultStore interface {
	Upsert(rec *model.FileAnalysis) error
	ListByJob(jobID string) ([]*model.FileAnalysis, error)
}

// ReportStore 任务报告存储
type ReportStore interface {
	SaveReport(report *model.JobReport) error
}

// ReportUploader 报告上传，*oss.Client 满足
type ReportUploader interface {
	UploadReportWithRetry(jobID string, data []byte) (string, error)
}

// StatusRecorder 任务状态缓存，*status.Store 满足
type StatusRecorder interface {
	SetJobStatus(ctx context.Context, jobID, status string) error
}

// Runner 执行一个任务
type Runner interface {
	Run(ctx context.Context, msg *queue.JobMessage) Summary
}

// Summary 一次运行的结果统计
type Summary struct {
	Groups       int
	Files        int
	FailedGroups int
	ReportURL    string
}

// candidate 待分析文件。ID 为相对任务目录的 / 分隔路径，也是记录键
type candidate struct {
	ID               string
	Path             string
	OriginalFilename string
}

// Pipeline 分组、分析、复核、保存的后台流程
type Pipeline struct {
	oracle   *oracle.Client
	records  ResultStore
	reports  ReportStore
	uploader ReportUploader
	sink     ProgressSink
	status   StatusRecorder
	chunker  chunk.Chunker
	cfg      *config.Config
}

// NewPipeline 创建流程。uploader、sink、status 可为 nil
func NewPipeline(
	oracleClient *oracle.Client,
	records ResultStore,
	reports ReportStore,
	uploader ReportUploader,
	sink ProgressSink,
	status StatusRecorder,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		oracle:   oracleClient,
		records:  records,
		reports:  reports,
		uploader: uploader,
		sink:     sink,
		status:   status,
		chunker:  chunk.New(cfg.Analysis.SmallFileLines, cfg.Analysis.ChunkLines),
		cfg:      cfg,
	}
}

// Run 处理一个任务直到所有分组结束，任何阶段的失败都只降级不返回错误
func (p *Pipeline) Run(ctx context.Context, msg *queue.JobMessage) Summary {
	start := time.Now()
	defer p.cleanup(msg)

	p.setStatus(msg.JobID, model.JobStatusRunning)
	t := newTracker(msg.JobID, p.sink)
	t.emit("上传完成", percentIntake)

	candidates := p.loadCandidates(msg)
	previews := make([]oracle.FilePreview, 0, len(candidates))
	for _, c := range candidates {
		previews = append(previews, oracle.FilePreview{Path: c.ID, Preview: c.preview})
	}

	t.emit("Grouping files", percentGroupStart)
	var groups [][]candidate
	if len(candidates) > 0 {
		result := p.oracle.Group(ctx, previews)
		if result.Failure != nil {
			log.Printf("Job %s: %s, falling back to one group per file", msg.JobID, result.Failure)
		}
		groups = resolveGroups(result, candidates)
	}
	t.setGroups(len(groups))
	t.emit(fmt.Sprintf("Connected Groups ready: %d groups", len(groups)), percentGroupDone)
	log.Printf("Job %s: %d files in %d groups", msg.JobID, len(candidates), len(groups))

	limit := p.cfg.Analysis.MaxConcurrentGroups
	if limit <= 0 {
		limit = defaultConcurrentGroups
	}
	states := make([]unitState, len(groups))
	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, files := range groups {
		u := &groupUnit{index: i + 1, total: len(groups), files: files}
		eg.Go(func() error {
			states[u.index-1] = p.runUnit(ctx, msg, t, u)
			return nil
		})
	}
	_ = eg.Wait()

	summary := Summary{Groups: len(groups), Files: len(candidates)}
	for _, s := range states {
		if s == stateFailed {
			summary.FailedGroups++
		}
	}

	summary.ReportURL = p.exportReport(msg.JobID)
	p.setStatus(msg.JobID, model.JobStatusCompleted)
	t.emit("DONE", percentDone)

	log.Printf("Job %s: completed in %s, %d groups (%d failed), report %s",
		msg.JobID, time.Since(start).Round(time.Millisecond), summary.Groups, summary.FailedGroups, summary.ReportURL)
	return summary
}

// loadCandidates 读取预览，无法读取的文件跳过
func (p *Pipeline) loadCandidates(msg *queue.JobMessage) []candidatePreview {
	size := p.cfg.Upload.PreviewBytes
	if size <= 0 {
		size = defaultPreviewBytes
	}

	out := make([]candidatePreview, 0, len(msg.Files))
	seen := make(map[string]struct{}, len(msg.Files))
	for _, ref := range msg.Files {
		id := path.Clean(strings.TrimPrefix(filepath.ToSlash(ref.Path), "./"))
		if _, ok := seen[id]; ok {
			continue
		}
		full := filepath.Join(msg.ScratchDir, filepath.FromSlash(id))
		preview, err := readPreview(full, size)
		if err != nil {
			log.Printf("Job %s: skipping %s: %v", msg.JobID, id, err)
			continue
		}
		seen[id] = struct{}{}
		out = append(out, candidatePreview{
			candidate: candidate{ID: id, Path: full, OriginalFilename: ref.OriginalFilename},
			preview:   preview,
		})
	}
	return out
}

type candidatePreview struct {
	candidate
	preview string
}

func readPreview(name string, size int) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	// 截断处可能落在多字节字符中间
	return strings.ToValidUTF8(string(buf[:n]), ""), nil
}

// resolveGroups 将分组结果映射回候选文件。
// 失败或空结果时每个文件单独成组；未知路径丢弃；重复路径保留首次出现的分组；遗漏的文件各自成组
func resolveGroups(result oracle.GroupResult, candidates []candidatePreview) [][]candidate {
	byID := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c.candidate
	}

	var groups [][]candidate
	assigned := make(map[string]struct{}, len(candidates))
	if result.Failure == nil {
		for _, g := range result.Groups {
			var files []candidate
			for _, p := range g {
				c, ok := byID[normalizeID(p)]
				if !ok {
					continue
				}
				if _, dup := assigned[c.ID]; dup {
					continue
				}
				assigned[c.ID] = struct{}{}
				files = append(files, c)
			}
			if len(files) > 0 {
				groups = append(groups, files)
			}
		}
	}

	for _, c := range candidates {
		if _, ok := assigned[c.ID]; !ok {
			groups = append(groups, []candidate{c.candidate})
		}
	}
	return groups
}

func normalizeID(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	return path.Clean(strings.TrimPrefix(p, "./"))
}

// reportDocument 导出的任务报告
type reportDocument struct {
	JobID       string                `json:"job_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	FileCount   int                   `json:"file_count"`
	Files       []*model.FileAnalysis `json:"files"`
}

// LocalReportPath 本地报告路径
func LocalReportPath(tempDir, jobID string) string {
	return filepath.Join(tempDir, cron.ReportsDir, jobID+".json")
}

// exportReport 汇总任务记录，优先上传 OSS，失败时写本地
func (p *Pipeline) exportReport(jobID string) string {
	if p.reports == nil {
		return ""
	}
	records, err := p.records.ListByJob(jobID)
	if err != nil {
		log.Printf("Job %s: failed to load records for report: %v", jobID, err)
		return ""
	}
	data, err := json.Marshal(reportDocument{
		JobID:       jobID,
		GeneratedAt: time.Now().UTC(),
		FileCount:   len(records),
		Files:       records,
	})
	if err != nil {
		log.Printf("Job %s: failed to encode report: %v", jobID, err)
		return ""
	}

	var url string
	if p.uploader != nil {
		url, err = p.uploader.UploadReportWithRetry(jobID, data)
		if err != nil {
			log.Printf("Job %s: report upload failed, keeping local copy: %v", jobID, err)
			url = ""
		}
	}
	if url == "" {
		localPath := LocalReportPath(p.cfg.Upload.TempDir, jobID)
		if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
			log.Printf("Job %s: failed to create report dir: %v", jobID, err)
			return ""
		}
		if err := os.WriteFile(localPath, data, 0644); err != nil {
			log.Printf("Job %s: failed to save report locally: %v", jobID, err)
			return ""
		}
		url = model.LocalReportPrefix + jobID
	}

	if err := p.reports.SaveReport(&model.JobReport{JobID: jobID, ReportURL: url, FileCount: len(records)}); err != nil {
		log.Printf("Job %s: failed to save report: %v", jobID, err)
	}
	return url
}

func (p *Pipeline) setStatus(jobID, status string) {
	if p.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	if err := p.status.SetJobStatus(ctx, jobID, status); err != nil {
		log.Printf("Job %s: failed to set status %s: %v", jobID, status, err)
	}
}

// cleanup 删除任务临时目录，只处理 temp_dir 下的路径
func (p *Pipeline) cleanup(msg *queue.JobMessage) {
	if msg.ScratchDir == "" {
		return
	}
	if !withinDir(p.cfg.Upload.TempDir, msg.ScratchDir) {
		log.Printf("Job %s: refusing to remove %s outside temp dir", msg.JobID, msg.ScratchDir)
		return
	}
	if err := os.RemoveAll(msg.ScratchDir); err != nil {
		log.Printf("Job %s: failed to remove scratch dir: %v", msg.JobID, err)
	}
}

func withinDir(root, dir string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
