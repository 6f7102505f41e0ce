package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/bug_triage_server/internal/model"
)

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, opts ...func(*model.Job)) *model.Job {
	t.Helper()

	job := &model.Job{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		Username:    "tester",
		ProjectID:   "project-1",
		Description: "test upload",
		FileCount:   1,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithProject 设置项目和提交人
func WithProject(projectID, userID string) func(*model.Job) {
	return func(j *model.Job) {
		j.ProjectID = projectID
		j.UserID = userID
	}
}

// TestFileAnalysis 为任务创建一条文件记录
func TestFileAnalysis(t *testing.T, db *gorm.DB, job *model.Job, file string, bugs ...model.Bug) *model.FileAnalysis {
	t.Helper()

	rec := &model.FileAnalysis{
		JobID:            job.ID,
		File:             file,
		OriginalFilename: file,
		UserID:           job.UserID,
		Username:         job.Username,
		ProjectID:        job.ProjectID,
		Description:      job.Description,
	}
	rec.SetFindings(model.Findings{Bugs: bugs}, model.Findings{Bugs: bugs})

	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test file analysis: %v", err)
	}

	return rec
}

// TestReport 创建任务报告
func TestReport(t *testing.T, db *gorm.DB, jobID, url string) *model.JobReport {
	t.Helper()

	report := &model.JobReport{JobID: jobID, ReportURL: url, FileCount: 1, CreatedAt: time.Now()}
	if err := db.Create(report).Error; err != nil {
		t.Fatalf("Failed to create test report: %v", err)
	}
	return report
}
