package oss

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/bug_triage_server/config"
)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// ReportObjectKey 任务报告的 object key
func ReportObjectKey(jobID string, at time.Time) string {
	return fmt.Sprintf("reports/%s/%d.json", jobID, at.Unix())
}

// UploadReport 上传任务报告 JSON
func (c *Client) UploadReport(jobID string, data []byte) (string, error) {
	objectKey := ReportObjectKey(jobID, time.Now())

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType("application/json"))
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return c.GetURL(objectKey), nil
}

// UploadReportWithRetry 最多尝试三次，间隔 1s、2s
func (c *Client) UploadReportWithRetry(jobID string, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		url, err := c.UploadReport(jobID, data)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// Delete 删除文件
func (c *Client) Delete(objectKey string) error {
	if err := c.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetURL 获取文件访问 URL
func (c *Client) GetURL(objectKey string) string {
	return buildURL(c.cdnDomain, c.bucketName, c.client.Config.Endpoint, objectKey)
}

func buildURL(cdnDomain, bucketName, endpoint, objectKey string) string {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cdnDomain, objectKey)
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucketName, endpoint, objectKey)
}

// ExtractObjectKey 从 URL 中提取 object key
func (c *Client) ExtractObjectKey(url string) string {
	return extractObjectKey(c.cdnDomain, url)
}

func extractObjectKey(cdnDomain, url string) string {
	if cdnDomain != "" {
		prefix := fmt.Sprintf("https://%s/", cdnDomain)
		if strings.HasPrefix(url, prefix) {
			return url[len(prefix):]
		}
	}

	// https://bucket-name.endpoint/path/to/object
	parts := strings.SplitN(url, "/", 4)
	if len(parts) == 4 {
		return parts[3]
	}
	return url
}
