package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/oracle"
	"github.com/qs3c/bug_triage_server/internal/pkg/llm"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
	"github.com/qs3c/bug_triage_server/internal/repository"
	"github.com/qs3c/bug_triage_server/internal/testutil"
)

// recordingSink 记录所有进度事件
type recordingSink struct {
	mu     sync.Mutex
	events []ws.Event
}

func (s *recordingSink) Publish(_ string, ev ws.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) percents() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Percent != nil {
			out = append(out, *ev.Percent)
		}
	}
	return out
}

func (s *recordingSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Status)
	}
	return out
}

var fileHeader = regexp.MustCompile(`File: (\S+) \(Lines`)

// filesInPrompt 分析提示词中出现的文件，按出现顺序去重
func filesInPrompt(prompt string) []string {
	var files []string
	seen := map[string]bool{}
	for _, m := range fileHeader.FindAllStringSubmatch(prompt, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			files = append(files, m[1])
		}
	}
	return files
}

// script 按调用阶段返回预设响应，未设置的阶段使用默认响应
type script struct {
	group   func() (string, error)
	analyze func(files []string) (string, error)
	refine  func(fileID string) (string, error)
}

func (s script) client() *llm.MockClient {
	return &llm.MockClient{GenerateFunc: func(_ context.Context, _, prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Files in this upload"):
			if s.group == nil {
				return "[]", nil
			}
			return s.group()
		case strings.HasPrefix(prompt, "Here are the files"):
			files := filesInPrompt(prompt)
			if s.analyze == nil {
				return defaultAnalysis(files), nil
			}
			return s.analyze(files)
		case strings.HasPrefix(prompt, "You are reviewing file: "):
			fileID := strings.SplitN(strings.TrimPrefix(prompt, "You are reviewing file: "), "\n", 2)[0]
			if s.refine == nil {
				return `{"bugs": [{"line": 2, "priority": "Low", "confidence": "Low", "description": "refined ` + fileID + `"}]}`, nil
			}
			return s.refine(fileID)
		}
		return "", errors.New("unexpected prompt")
	}}
}

func defaultAnalysis(files []string) string {
	out := map[string]interface{}{}
	for _, f := range files {
		out[f] = map[string]interface{}{
			"bugs": []map[string]interface{}{
				{"line": 1, "priority": "high", "confidence": "0.9", "description": "bug in " + f},
			},
			"optimizations": []map[string]interface{}{
				{"line": -1, "description": "opt for " + f},
			},
		}
	}
	data, _ := json.Marshal(out)
	return string(data)
}

type testEnv struct {
	cfg     *config.Config
	db      *gorm.DB
	records *repository.FileAnalysisRepository
	jobs    *repository.JobRepository
	sink    *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{}
	cfg.Upload.TempDir = t.TempDir()
	cfg.Upload.PreviewBytes = 500
	cfg.Analysis = config.AnalysisConfig{MaxConcurrentGroups: 4, SmallFileLines: 300, ChunkLines: 400}

	return &testEnv{
		cfg:     cfg,
		db:      db,
		records: repository.NewFileAnalysisRepository(db),
		jobs:    repository.NewJobRepository(db),
		sink:    &recordingSink{},
	}
}

func (e *testEnv) pipeline(c llm.Client) *Pipeline {
	return NewPipeline(oracle.New(c, time.Second), e.records, e.jobs, nil, e.sink, nil, e.cfg)
}

// submit 在任务目录下写入文件并构造队列消息
func (e *testEnv) submit(t *testing.T, files map[string]string) *queue.JobMessage {
	t.Helper()
	job := testutil.TestJob(t, e.db)
	scratch := filepath.Join(e.cfg.Upload.TempDir, job.ID)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	msg := &queue.JobMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		Username:    job.Username,
		ProjectID:   job.ProjectID,
		Description: job.Description,
		ScratchDir:  scratch,
	}
	for _, name := range names {
		full := filepath.Join(scratch, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(files[name]), 0644))
		msg.Files = append(msg.Files, queue.FileRef{Path: name, OriginalFilename: "upload.zip"})
	}
	return msg
}
