package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/bug_triage_server/internal/model"
)

// 冲突时覆盖的列，id 和 created_at 保留首次写入的值
var upsertColumns = []string{
	"original_filename", "user_id", "username", "project_id", "description",
	"bugs_original", "bugs_refined", "optimizations_original", "optimizations_refined",
	"updated_at",
}

// RecordFilter Count 的过滤条件，空字段不参与过滤
type RecordFilter struct {
	JobID     string
	ProjectID string
	UserID    string
}

type FileAnalysisRepository struct {
	db *gorm.DB
}

func NewFileAnalysisRepository(db *gorm.DB) *FileAnalysisRepository {
	return &FileAnalysisRepository{db: db}
}

// Upsert 按 (job_id, file) 插入或覆盖，可并发调用。rec.ID 由数据库回填
func (r *FileAnalysisRepository) Upsert(rec *model.FileAnalysis) error {
	rec.ID = 0
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "file"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(rec).Error
}

func (r *FileAnalysisRepository) GetByJobAndFile(jobID, file string) (*model.FileAnalysis, error) {
	var rec model.FileAnalysis
	err := r.db.Where("job_id = ? AND file = ?", jobID, file).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *FileAnalysisRepository) ListByJob(jobID string) ([]*model.FileAnalysis, error) {
	var recs []*model.FileAnalysis
	err := r.db.Where("job_id = ?", jobID).Order("file ASC").Find(&recs).Error
	return recs, err
}

// ListByProject 项目下的记录，按创建时间倒序分页。userID 非空时只返回该用户的记录
func (r *FileAnalysisRepository) ListByProject(projectID string, page, pageSize int, userID string) ([]*model.FileAnalysis, int64, error) {
	var recs []*model.FileAnalysis
	var total int64

	query := r.db.Model(&model.FileAnalysis{}).Where("project_id = ?", projectID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}

// DistinctJobIDs 项目下出现过的任务 ID
func (r *FileAnalysisRepository) DistinctJobIDs(projectID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.FileAnalysis{}).
		Where("project_id = ?", projectID).
		Distinct().
		Order("job_id ASC").
		Pluck("job_id", &ids).Error
	return ids, err
}

func (r *FileAnalysisRepository) Count(filter RecordFilter) (int64, error) {
	var total int64
	query := r.db.Model(&model.FileAnalysis{})
	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	err := query.Count(&total).Error
	return total, err
}
