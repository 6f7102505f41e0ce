package model

import (
	"strings"
	"time"
)

// 任务状态（保存在 Redis 状态缓存中，Job 行本身不更新）
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
)

// Job 一次上传批次。提交时创建，之后不再修改
type Job struct {
	ID          string    `gorm:"primaryKey;size:36" json:"job_id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Username    string    `gorm:"size:100" json:"username"`
	ProjectID   string    `gorm:"size:64;not null;index" json:"project_id"`
	Description string    `gorm:"type:text" json:"description"`
	FileCount   int       `json:"file_count"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Job) TableName() string {
	return "triage_jobs"
}

// JobReport 任务完成后导出的汇总报告
type JobReport struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"size:36;not null;uniqueIndex" json:"job_id"`
	ReportURL string    `gorm:"size:500" json:"report_url"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (JobReport) TableName() string {
	return "triage_job_reports"
}

// IsLocal 报告是否仍保存在本地磁盘
func (r *JobReport) IsLocal() bool {
	return strings.HasPrefix(r.ReportURL, LocalReportPrefix)
}

// LocalReportPrefix 本地存储的报告 URL 前缀
const LocalReportPrefix = "local://"
