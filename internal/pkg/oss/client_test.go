package oss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReportObjectKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "reports/job-1/1700000000.json", ReportObjectKey("job-1", at))
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/reports/a.json",
		buildURL("cdn.example.com", "bucket", "oss-cn-hangzhou.aliyuncs.com", "reports/a.json"))
	assert.Equal(t, "https://bucket.oss-cn-hangzhou.aliyuncs.com/reports/a.json",
		buildURL("", "bucket", "https://oss-cn-hangzhou.aliyuncs.com", "reports/a.json"))
}

func TestExtractObjectKey(t *testing.T) {
	assert.Equal(t, "reports/job-1/1.json",
		extractObjectKey("cdn.example.com", "https://cdn.example.com/reports/job-1/1.json"))
	assert.Equal(t, "reports/job-1/1.json",
		extractObjectKey("", "https://bucket.oss-cn-hangzhou.aliyuncs.com/reports/job-1/1.json"))
	assert.Equal(t, "local://job-1", extractObjectKey("", "local://job-1"))
}
