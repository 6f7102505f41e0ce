package handler

import (
	"archive/zip"
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/pkg/response"
	"github.com/qs3c/bug_triage_server/internal/repository"
	"github.com/qs3c/bug_triage_server/internal/service"
	"github.com/qs3c/bug_triage_server/internal/testutil"
)

func setupUploadRouter(t *testing.T, maxSize int64) (*gin.Engine, *fakeDispatcher) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSize:       maxSize,
			TempDir:       t.TempDir(),
			MaxEntryBytes: 1 << 20,
		},
	}
	dispatcher := &fakeDispatcher{}
	svc := service.NewSubmissionService(repository.NewJobRepository(db), dispatcher, nil, cfg)
	h := NewUploadHandler(svc)

	router := gin.New()
	router.POST("/api/v1/upload", mockAuth("u-1", "p-1"), h.Upload)
	return router, dispatcher
}

type part struct {
	name    string
	content []byte
}

func multipartBody(t *testing.T, description string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		fw, err := writer.CreateFormFile("files", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.content)
		require.NoError(t, err)
	}
	if description != "" {
		require.NoError(t, writer.WriteField("description", description))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func createTestZipContent(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUploadHandler_Upload(t *testing.T) {
	router, dispatcher := setupUploadRouter(t, 1<<20)

	body, ct := multipartBody(t, "nightly run",
		part{"app.zip", createTestZipContent(t, map[string]string{"main.go": "package main\n", "README.md": "# x\n"})},
		part{"util.py", []byte("def f():\n    return 1\n")},
	)
	w := performRequest(router, http.MethodPost, "/api/v1/upload", body, ct)
	assert.Equal(t, http.StatusOK, w.Code)

	var data dto.SubmitResponse
	resp := parseResponse(t, w, &data)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.NotEmpty(t, data.JobID)
	assert.Equal(t, 2, data.FileCount)

	require.Len(t, dispatcher.msgs, 1)
	msg := dispatcher.msgs[0]
	assert.Equal(t, data.JobID, msg.JobID)
	assert.Equal(t, "nightly run", msg.Description)
	assert.Equal(t, "u-1", msg.UserID)
	assert.Equal(t, "p-1", msg.ProjectID)
}

func TestUploadHandler_Upload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		maxSize  int64
		parts    []part
		wantCode int
	}{
		{"no files", 1 << 20, nil, response.CodeParamError},
		{"no code files", 1 << 20, []part{{"notes.txt", []byte("hello")}}, response.CodeNoCodeFiles},
		{"too large", 8, []part{{"main.go", []byte("package main\n\nfunc main() {}\n")}}, response.CodeUploadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, dispatcher := setupUploadRouter(t, tt.maxSize)
			body, ct := multipartBody(t, "", tt.parts...)

			w := performRequest(router, http.MethodPost, "/api/v1/upload", body, ct)
			assert.Equal(t, http.StatusOK, w.Code)
			resp := parseResponse(t, w, nil)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Empty(t, dispatcher.msgs)
		})
	}
}

func TestUploadHandler_Upload_NotMultipart(t *testing.T) {
	router, _ := setupUploadRouter(t, 1<<20)

	w := performRequest(router, http.MethodPost, "/api/v1/upload", nil, "")
	resp := parseResponse(t, w, nil)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestUploadHandler_Upload_Unauthenticated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	cfg := &config.Config{Upload: config.UploadConfig{MaxSize: 1 << 20, TempDir: t.TempDir()}}
	h := NewUploadHandler(service.NewSubmissionService(repository.NewJobRepository(db), &fakeDispatcher{}, nil, cfg))

	router := gin.New()
	router.POST("/api/v1/upload", h.Upload)
	body, ct := multipartBody(t, "", part{"a.py", []byte("x = 1\n")})

	w := performRequest(router, http.MethodPost, "/api/v1/upload", body, ct)
	resp := parseResponse(t, w, nil)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
