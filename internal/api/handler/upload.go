package handler

import (
	"errors"
	"log"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bug_triage_server/internal/api/middleware"
	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/pkg/response"
	"github.com/qs3c/bug_triage_server/internal/service"
)

type UploadHandler struct {
	submissions *service.SubmissionService
}

func NewUploadHandler(submissions *service.SubmissionService) *UploadHandler {
	return &UploadHandler{submissions: submissions}
}

// Upload 提交待分析的代码文件或 ZIP 压缩包
// POST /api/v1/upload
func (h *UploadHandler) Upload(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.ParamError(c, "请上传文件")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.ParamError(c, "请上传文件")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(files)
			response.ParamError(c, "文件读取失败")
			return
		}
		files = append(files, service.UploadFile{Name: fh.Filename, Reader: f})
	}
	defer closeAll(files)

	meta := dto.SubmitMeta{
		UserID:      id.UserID,
		Username:    id.Username,
		ProjectID:   id.ProjectID,
		Description: c.PostForm("description"),
	}

	resp, err := h.submissions.Submit(c.Request.Context(), meta, files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoFiles), errors.Is(err, service.ErrInvalidMeta):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrNoCodeFiles):
			response.NoCodeFilesError(c, "")
		case errors.Is(err, service.ErrFileTooLarge):
			response.TooLargeError(c, "")
		case errors.Is(err, service.ErrMissingPrincipal):
			response.AuthError(c, err.Error())
		default:
			log.Printf("Upload from %s failed: %v", id.UserID, err)
			response.ServerError(c, "提交失败")
		}
		return
	}

	response.Success(c, resp)
}

func closeAll(files []service.UploadFile) {
	for _, f := range files {
		if c, ok := f.Reader.(multipart.File); ok {
			c.Close()
		}
	}
}
