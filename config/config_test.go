package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "inline", cfg.Queue.Mode)
	assert.Equal(t, "local", cfg.Progress.Backend)
	assert.Equal(t, 4, cfg.Analysis.MaxConcurrentGroups)
	assert.Equal(t, 300, cfg.Analysis.SmallFileLines)
	assert.Equal(t, 400, cfg.Analysis.ChunkLines)
	assert.Equal(t, 500, cfg.Upload.PreviewBytes)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoad_PrefersLocalConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "llm:\n  api_key: public\n")
	writeConfig(t, dir, "config.local.yaml", "llm:\n  api_key: secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "analysis:\n  max_concurrent_groups: 2\n")
	t.Setenv("ANALYSIS_MAX_CONCURRENT_GROUPS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Analysis.MaxConcurrentGroups)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLLMConfig_Timeout(t *testing.T) {
	assert.Equal(t, 120*time.Second, LLMConfig{}.Timeout())
	assert.Equal(t, 5*time.Second, LLMConfig{TimeoutSeconds: 5}.Timeout())
}

func TestOSSConfig_Enabled(t *testing.T) {
	assert.False(t, OSSConfig{}.Enabled())
	assert.True(t, OSSConfig{Endpoint: "oss-cn-hangzhou.aliyuncs.com", AccessKeyID: "id"}.Enabled())
}
