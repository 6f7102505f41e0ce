package model

import (
	"time"

	"gorm.io/datatypes"
)

// Bug 单条缺陷
type Bug struct {
	Line        int    `json:"line"`
	Priority    string `json:"priority"`   // High, Medium, Low
	Confidence  string `json:"confidence"` // High, Medium, Low 或 "85%"
	Description string `json:"description"`
}

// Optimization 单条优化建议，Line 为 0 或 -1 表示不对应具体行
type Optimization struct {
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// Findings 一个文件的分析结果
type Findings struct {
	Bugs          []Bug          `json:"bugs"`
	Optimizations []Optimization `json:"optimizations"`
}

// Normalize 保证切片非 nil
func (f Findings) Normalize() Findings {
	if f.Bugs == nil {
		f.Bugs = []Bug{}
	}
	if f.Optimizations == nil {
		f.Optimizations = []Optimization{}
	}
	return f
}

// FileAnalysis 单个文件的分析记录，(job_id, file) 唯一
type FileAnalysis struct {
	ID                    int64                             `gorm:"primaryKey" json:"id"`
	JobID                 string                            `gorm:"size:36;not null;uniqueIndex:idx_job_file" json:"job_id"`
	File                  string                            `gorm:"size:255;not null;uniqueIndex:idx_job_file" json:"file"`
	OriginalFilename      string                            `gorm:"size:255" json:"original_filename"`
	UserID                string                            `gorm:"size:64;index" json:"user_id"`
	Username              string                            `gorm:"size:100" json:"username"`
	ProjectID             string                            `gorm:"size:64;index" json:"project_id"`
	Description           string                            `gorm:"type:text" json:"upload_description"`
	BugsOriginal          datatypes.JSONSlice[Bug]          `json:"bugs_original"`
	BugsRefined           datatypes.JSONSlice[Bug]          `json:"bugs_sanity_checked"`
	OptimizationsOriginal datatypes.JSONSlice[Optimization] `json:"optimizations_original"`
	OptimizationsRefined  datatypes.JSONSlice[Optimization] `json:"optimizations_sanity_checked"`
	CreatedAt             time.Time                         `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time                         `json:"updated_at"`
}

func (FileAnalysis) TableName() string {
	return "file_analyses"
}

// SetFindings 写入原始与复核结果
func (a *FileAnalysis) SetFindings(original, refined Findings) {
	original = original.Normalize()
	refined = refined.Normalize()
	a.BugsOriginal = datatypes.JSONSlice[Bug](original.Bugs)
	a.OptimizationsOriginal = datatypes.JSONSlice[Optimization](original.Optimizations)
	a.BugsRefined = datatypes.JSONSlice[Bug](refined.Bugs)
	a.OptimizationsRefined = datatypes.JSONSlice[Optimization](refined.Optimizations)
}
