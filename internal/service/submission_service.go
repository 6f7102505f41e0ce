package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/pkg/extract"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

var (
	ErrNoFiles          = errors.New("未提供文件")
	ErrNoCodeFiles      = errors.New("没有可分析的代码文件")
	ErrFileTooLarge     = errors.New("上传文件过大")
	ErrMissingPrincipal = errors.New("缺少用户或项目信息")
	ErrInvalidMeta      = errors.New("提交信息不合法")
)

const archivesDir = ".archives"

// Dispatcher 接收已创建的任务，*worker.Supervisor 和 *queue.Queue 都满足
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *queue.JobMessage) error
}

// JobCreator 任务持久化
type JobCreator interface {
	Create(job *model.Job) error
}

// StatusWriter 任务状态缓存
type StatusWriter interface {
	SetJobStatus(ctx context.Context, jobID, status string) error
}

// UploadFile 一个上传的文件
type UploadFile struct {
	Name   string
	Reader io.Reader
}

type SubmissionService struct {
	jobs       JobCreator
	dispatcher Dispatcher
	status     StatusWriter
	validate   *validator.Validate
	cfg        *config.Config
}

// NewSubmissionService status 可为 nil
func NewSubmissionService(jobs JobCreator, dispatcher Dispatcher, status StatusWriter, cfg *config.Config) *SubmissionService {
	return &SubmissionService{
		jobs:       jobs,
		dispatcher: dispatcher,
		status:     status,
		validate:   validator.New(),
		cfg:        cfg,
	}
}

// Submit 保存并整理上传文件，创建任务后交给后台处理，立即返回任务 ID
func (s *SubmissionService) Submit(ctx context.Context, meta dto.SubmitMeta, files []UploadFile) (*dto.SubmitResponse, error) {
	if strings.TrimSpace(meta.UserID) == "" || strings.TrimSpace(meta.ProjectID) == "" {
		return nil, ErrMissingPrincipal
	}
	if err := s.validate.Struct(meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	jobID := uuid.NewString()
	scratch := filepath.Join(s.cfg.Upload.TempDir, jobID)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	in := &intake{
		scratch: scratch,
		maxSize: s.cfg.Upload.MaxSize,
		opts:    extract.Options{MaxEntryBytes: s.cfg.Upload.MaxEntryBytes},
		used:    make(map[string]struct{}),
		seenRaw: make(map[string]struct{}),
		jobID:   jobID,
	}
	for _, f := range files {
		if err := in.add(f); err != nil {
			os.RemoveAll(scratch)
			return nil, err
		}
	}
	os.RemoveAll(filepath.Join(scratch, archivesDir))

	if len(in.refs) == 0 {
		os.RemoveAll(scratch)
		return nil, ErrNoCodeFiles
	}

	job := &model.Job{
		ID:          jobID,
		UserID:      meta.UserID,
		Username:    meta.Username,
		ProjectID:   meta.ProjectID,
		Description: meta.Description,
		FileCount:   len(in.refs),
	}
	if err := s.jobs.Create(job); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if s.status != nil {
		statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.status.SetJobStatus(statusCtx, jobID, model.JobStatusQueued); err != nil {
			log.Printf("Job %s: failed to set queued status: %v", jobID, err)
		}
		cancel()
	}

	msg := &queue.JobMessage{
		JobID:       jobID,
		UserID:      meta.UserID,
		Username:    meta.Username,
		ProjectID:   meta.ProjectID,
		Description: meta.Description,
		ScratchDir:  scratch,
		Files:       in.refs,
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	log.Printf("Job %s: accepted %d files (%d skipped) from %s", jobID, len(in.refs), len(in.skipped), meta.Username)
	return &dto.SubmitResponse{JobID: jobID, FileCount: len(in.refs), Skipped: in.skipped}, nil
}

// intake 一次提交的文件整理状态
type intake struct {
	scratch string
	maxSize int64
	written int64
	opts    extract.Options
	used    map[string]struct{} // 任务目录顶层已占用的名称
	seenRaw map[string]struct{}
	refs    []queue.FileRef
	skipped []string
	jobID   string
}

func (in *intake) skip(name, reason string) {
	in.skipped = append(in.skipped, fmt.Sprintf("%s (%s)", name, reason))
}

// add 压缩包解压到 <scratch>/<stem>，普通文件按文件名保存到 <scratch>
func (in *intake) add(f UploadFile) error {
	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		in.skip(f.Name, "invalid file name")
		return nil
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return in.addArchive(name, f.Reader)
	}
	return in.addRaw(name, f.Reader)
}

func (in *intake) addRaw(name string, r io.Reader) error {
	if _, dup := in.seenRaw[name]; dup {
		in.skip(name, "duplicate file name")
		return nil
	}
	if !extract.IsSource(name) {
		in.skip(name, "not a source file")
		return nil
	}
	in.seenRaw[name] = struct{}{}

	target := in.reserve(name)
	full := filepath.Join(in.scratch, target)
	if err := in.save(full, r); err != nil {
		return err
	}
	if !extract.IsValid(full) {
		os.Remove(full)
		in.skip(name, "empty or binary content")
		return nil
	}
	in.refs = append(in.refs, queue.FileRef{Path: target, OriginalFilename: name})
	return nil
}

func (in *intake) addArchive(name string, r io.Reader) error {
	archive := filepath.Join(in.scratch, archivesDir, name)
	if err := in.save(archive, r); err != nil {
		return err
	}
	defer os.Remove(archive)

	dir := in.reserve(strings.TrimSuffix(name, filepath.Ext(name)))
	res, err := extract.ExtractZipFile(archive, filepath.Join(in.scratch, dir), in.opts)
	if err != nil {
		log.Printf("Job %s: skipping archive %s: %v", in.jobID, name, err)
		in.skip(name, err.Error())
		return nil
	}
	for _, sk := range res.Skipped {
		log.Printf("Job %s: %s: skipped %s (%s)", in.jobID, name, sk.Name, sk.Reason)
	}

	for _, rel := range res.Files {
		jobRel := dir + "/" + rel
		if !extract.IsCandidate(filepath.Join(in.scratch, filepath.FromSlash(jobRel))) {
			continue
		}
		in.refs = append(in.refs, queue.FileRef{Path: jobRel, OriginalFilename: name})
	}
	return nil
}

// reserve 在任务目录顶层取一个未占用的名称
func (in *intake) reserve(name string) string {
	if name == "" || name == archivesDir {
		name = "upload"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; ; i++ {
		if _, taken := in.used[candidate]; !taken {
			in.used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// save 写入磁盘并累计大小，超过上限返回 ErrFileTooLarge
func (in *intake) save(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	defer out.Close()

	src := r
	if in.maxSize > 0 {
		src = io.LimitReader(r, in.maxSize-in.written+1)
	}
	n, err := io.Copy(out, src)
	in.written += n
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if in.maxSize > 0 && in.written > in.maxSize {
		return ErrFileTooLarge
	}
	return nil
}
