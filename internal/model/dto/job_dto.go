package dto

// JobDetail 任务详情
type JobDetail struct {
	JobID       string `json:"job_id"`
	Username    string `json:"username"`
	Description string `json:"description"`
	FileCount   int    `json:"file_count"`
	RecordCount int64  `json:"record_count"`
	Status      string `json:"status,omitempty"`
	ReportURL   string `json:"report_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// JobListResponse 项目下的任务 ID 列表
type JobListResponse struct {
	JobIDs []string `json:"job_ids"`
	Total  int64    `json:"total"`
}

// JobStatusResponse 任务状态
type JobStatusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
