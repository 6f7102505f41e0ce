package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bug_triage_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id string) (*model.Job, error) {
	var job model.Job
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SaveReport 写入或替换任务报告，按 job_id 唯一
func (r *JobRepository) SaveReport(report *model.JobReport) error {
	report.ID = 0
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"report_url", "file_count", "updated_at"}),
	}).Create(report).Error
}

func (r *JobRepository) GetReport(jobID string) (*model.JobReport, error) {
	var report model.JobReport
	err := r.db.Where("job_id = ?", jobID).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListLocalReports 仍保存在本地磁盘、待上传到 OSS 的报告
func (r *JobRepository) ListLocalReports() ([]*model.JobReport, error) {
	var reports []*model.JobReport
	err := r.db.Where("report_url LIKE ?", model.LocalReportPrefix+"%").
		Order("created_at ASC").
		Find(&reports).Error
	return reports, err
}

func (r *JobRepository) UpdateReportURL(jobID, url string) error {
	return r.db.Model(&model.JobReport{}).Where("job_id = ?", jobID).Update("report_url", url).Error
}
