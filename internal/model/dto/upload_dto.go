package dto

// SubmitMeta 提交批次的元数据
type SubmitMeta struct {
	UserID      string `validate:"required,max=64"`
	Username    string `validate:"max=100"`
	ProjectID   string `validate:"required,max=64"`
	Description string `validate:"max=2000"`
}

// SubmitResponse 上传提交响应
type SubmitResponse struct {
	JobID     string   `json:"job_id"`
	FileCount int      `json:"file_count"`
	Skipped   []string `json:"skipped,omitempty"`
}
