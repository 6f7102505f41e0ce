package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/repository"
)

var (
	ErrJobNotFound    = errors.New("任务不存在")
	ErrRecordNotFound = errors.New("分析记录不存在")
)

// 任务状态缓存未命中时返回
const JobStatusUnknown = "unknown"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// StatusReader 任务状态缓存
type StatusReader interface {
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
}

// ResultService 分析结果查询，所有读取都限定在调用方所属项目
type ResultService struct {
	records *repository.FileAnalysisRepository
	jobs    *repository.JobRepository
	status  StatusReader
}

// NewResultService status 可为 nil
func NewResultService(records *repository.FileAnalysisRepository, jobs *repository.JobRepository, status StatusReader) *ResultService {
	return &ResultService{records: records, jobs: jobs, status: status}
}

// NormalizePage 页码从 1 开始，每页默认 20 条，最多 100 条
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// GetFileBugs 单个文件的分析结果
func (s *ResultService) GetFileBugs(projectID, jobID, file string) (*model.FileAnalysis, error) {
	rec, err := s.records.GetByJobAndFile(jobID, file)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if rec.ProjectID != projectID {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// ListJobIDs 项目下有分析记录的任务
func (s *ResultService) ListJobIDs(projectID string) (*dto.JobListResponse, error) {
	ids, err := s.records.DistinctJobIDs(projectID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return &dto.JobListResponse{JobIDs: ids, Total: int64(len(ids))}, nil
}

func (s *ResultService) getJob(projectID, jobID string) (*model.Job, error) {
	job, err := s.jobs.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.ProjectID != projectID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetJob 任务详情，含记录数、报告地址和状态
func (s *ResultService) GetJob(ctx context.Context, projectID, jobID string) (*dto.JobDetail, error) {
	job, err := s.getJob(projectID, jobID)
	if err != nil {
		return nil, err
	}

	count, err := s.records.Count(repository.RecordFilter{JobID: job.ID})
	if err != nil {
		return nil, err
	}

	detail := &dto.JobDetail{
		JobID:       job.ID,
		Username:    job.Username,
		Description: job.Description,
		FileCount:   job.FileCount,
		RecordCount: count,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	}
	if report, err := s.jobs.GetReport(job.ID); err == nil {
		detail.ReportURL = report.ReportURL
	}
	detail.Status = s.resolveStatus(ctx, job.ID, detail.ReportURL != "")
	return detail, nil
}

// GetJobStatus 任务状态
func (s *ResultService) GetJobStatus(ctx context.Context, projectID, jobID string) (string, error) {
	job, err := s.getJob(projectID, jobID)
	if err != nil {
		return "", err
	}
	_, reportErr := s.jobs.GetReport(job.ID)
	return s.resolveStatus(ctx, job.ID, reportErr == nil), nil
}

// resolveStatus 优先读缓存；缓存过期后以报告是否存在判断是否完成
func (s *ResultService) resolveStatus(ctx context.Context, jobID string, hasReport bool) string {
	if s.status != nil {
		st, ok, err := s.status.GetJobStatus(ctx, jobID)
		if err != nil {
			log.Printf("Job %s: failed to read status: %v", jobID, err)
		} else if ok {
			return st
		}
	}
	if hasReport {
		return model.JobStatusCompleted
	}
	return JobStatusUnknown
}

// ListJobFiles 任务下全部文件记录
func (s *ResultService) ListJobFiles(projectID, jobID string) ([]*model.FileAnalysis, error) {
	if _, err := s.getJob(projectID, jobID); err != nil {
		return nil, err
	}
	return s.records.ListByJob(jobID)
}

// Dashboard 项目下全部记录，按时间倒序分页
func (s *ResultService) Dashboard(projectID string, page, pageSize int) ([]*model.FileAnalysis, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	return s.records.ListByProject(projectID, page, pageSize, "")
}

// MyUploads 调用方自己提交的记录
func (s *ResultService) MyUploads(projectID, userID string, page, pageSize int) ([]*model.FileAnalysis, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	return s.records.ListByProject(projectID, page, pageSize, userID)
}
