package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bug_triage_server/internal/api/middleware"
	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/pkg/response"
	"github.com/qs3c/bug_triage_server/internal/service"
)

type ResultHandler struct {
	results *service.ResultService
}

func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// FileBugs 单个文件的分析结果
// GET /api/v1/file-bugs?job_id=&file=
func (h *ResultHandler) FileBugs(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID := c.Query("job_id")
	file := c.Query("file")
	if jobID == "" || file == "" {
		response.ParamError(c, "缺少 job_id 或 file 参数")
		return
	}

	rec, err := h.results.GetFileBugs(id.ProjectID, jobID, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, rec)
}

// ListJobs 项目下的任务
// GET /api/v1/jobs
func (h *ResultHandler) ListJobs(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	list, err := h.results.ListJobIDs(id.ProjectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, list)
}

// GetJob 任务详情
// GET /api/v1/jobs/:id
func (h *ResultHandler) GetJob(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	detail, err := h.results.GetJob(c.Request.Context(), id.ProjectID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, detail)
}

// GetJobStatus 任务状态
// GET /api/v1/jobs/:id/status
func (h *ResultHandler) GetJobStatus(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID := c.Param("id")
	st, err := h.results.GetJobStatus(c.Request.Context(), id.ProjectID, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, dto.JobStatusResponse{JobID: jobID, Status: st})
}

// ListJobFiles 任务下全部文件的分析结果
// GET /api/v1/jobs/:id/files
func (h *ResultHandler) ListJobFiles(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	recs, err := h.results.ListJobFiles(id.ProjectID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, recs)
}

// Dashboard 项目下全部分析记录
// GET /api/v1/project/dashboard?page=&page_size=
func (h *ResultHandler) Dashboard(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, pageSize := pageParams(c)
	recs, total, err := h.results.Dashboard(id.ProjectID, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, recs)
}

// MyUploads 调用方自己提交的分析记录
// GET /api/v1/project/my-uploads?page=&page_size=
func (h *ResultHandler) MyUploads(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, pageSize := pageParams(c)
	recs, total, err := h.results.MyUploads(id.ProjectID, id.UserID, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, recs)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return service.NormalizePage(page, pageSize)
}

func (h *ResultHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, service.ErrRecordNotFound):
		response.NotFoundError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
