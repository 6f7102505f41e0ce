package cron

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// ReportsDir 本地报告目录名，清理时跳过
const ReportsDir = "reports"

// SweepEntry 一个过期的任务临时目录
type SweepEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// SweepResult 清理结果，dryRun 时 Removed 为将要删除的目录
type SweepResult struct {
	Removed []SweepEntry
	Bytes   int64
}

// SweepStale 删除 root 下修改时间早于 maxAge 的任务目录。非目录和 reports 目录不处理
func SweepStale(root string, maxAge time.Duration, dryRun bool) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ReportsDir {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		dirPath := filepath.Join(root, entry.Name())
		size := DirSize(dirPath)
		if !dryRun {
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("Cleanup: failed to remove %s: %v", dirPath, err)
				continue
			}
		}
		result.Removed = append(result.Removed, SweepEntry{Path: dirPath, Size: size, ModTime: info.ModTime()})
		result.Bytes += size
	}
	return result, nil
}

// DirSize 目录下全部文件大小
func DirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

type Service struct {
	tempDir     string
	expireHours int
	interval    time.Duration
	stopChan    chan struct{}
}

func NewService(tempDir string, expireHours int) *Service {
	return &Service{
		tempDir:     tempDir,
		expireHours: expireHours,
		interval:    time.Hour,
		stopChan:    make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (scratch cleanup)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次
func (s *Service) runCleanup() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}

// RunNow 立即清理一次残留的任务目录，返回删除数量
func (s *Service) RunNow() int {
	if s.tempDir == "" {
		return 0
	}

	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 1
	}

	result, err := SweepStale(s.tempDir, time.Duration(expireHours)*time.Hour, false)
	if err != nil {
		log.Printf("Cleanup: failed to read dir %s: %v", s.tempDir, err)
		return 0
	}
	if len(result.Removed) > 0 {
		log.Printf("Cleanup summary: scratch dirs=%d, bytes=%d", len(result.Removed), result.Bytes)
	}
	return len(result.Removed)
}
