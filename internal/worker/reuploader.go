package worker

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/model"
)

const reuploadInterval = 5 * time.Minute

// LocalReportStore 本地报告记录
type LocalReportStore interface {
	ListLocalReports() ([]*model.JobReport, error)
	UpdateReportURL(jobID, url string) error
}

// ReportBucket 报告对象存储，*oss.Client 满足
type ReportBucket interface {
	ReportUploader
	ExtractObjectKey(url string) string
	Delete(objectKey string) error
}

// Reuploader 后台异步重传本地报告到 OSS
type Reuploader struct {
	reports LocalReportStore
	bucket  ReportBucket
	cfg     *config.Config
}

// NewReuploader 创建重传器
func NewReuploader(reports LocalReportStore, bucket ReportBucket, cfg *config.Config) *Reuploader {
	return &Reuploader{
		reports: reports,
		bucket:  bucket,
		cfg:     cfg,
	}
}

// Start 启动后台重传循环
func (r *Reuploader) Start(ctx context.Context) {
	// 启动后先执行一次
	r.RunOnce()

	ticker := time.NewTicker(reuploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reuploader stopped")
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// RunOnce 重传一轮，返回成功数量
func (r *Reuploader) RunOnce() int {
	reports, err := r.reports.ListLocalReports()
	if err != nil {
		log.Printf("Reuploader: failed to query local reports: %v", err)
		return 0
	}

	if len(reports) == 0 {
		return 0
	}

	log.Printf("Reuploader: found %d local reports to re-upload", len(reports))

	uploaded := 0
	for _, rep := range reports {
		localPath := LocalReportPath(r.cfg.Upload.TempDir, rep.JobID)
		data, err := os.ReadFile(localPath)
		if err != nil {
			log.Printf("Reuploader: failed to read local report %s: %v", rep.JobID, err)
			continue
		}

		url, err := r.bucket.UploadReportWithRetry(rep.JobID, data)
		if err != nil {
			log.Printf("Reuploader: failed to re-upload report %s: %v", rep.JobID, err)
			continue
		}

		if err := r.reports.UpdateReportURL(rep.JobID, url); err != nil {
			log.Printf("Reuploader: failed to update DB for report %s: %v", rep.JobID, err)
			// 记录仍指向本地，删除刚上传的对象，下轮重试
			if key := r.bucket.ExtractObjectKey(url); key != "" {
				if err := r.bucket.Delete(key); err != nil {
					log.Printf("Reuploader: failed to delete orphan object %s: %v", key, err)
				}
			}
			continue
		}

		// 删除本地文件
		os.Remove(localPath)
		uploaded++
		log.Printf("Reuploader: successfully re-uploaded report %s to OSS", rep.JobID)
	}
	return uploaded
}
