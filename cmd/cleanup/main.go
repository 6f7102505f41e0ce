package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/pkg/cron"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	uploadExpire = flag.Int("upload-expire", 0, "Hours to keep job scratch dirs (default: upload.expire_hours)")
)

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	expireHours := *uploadExpire
	if expireHours <= 0 {
		expireHours = cfg.Upload.ExpireHours
	}
	if expireHours <= 0 {
		expireHours = 24
	}

	root := cfg.Upload.TempDir
	log.Printf("Scanning %s for scratch dirs older than %d hours...", root, expireHours)

	result, err := cron.SweepStale(root, time.Duration(expireHours)*time.Hour, *dryRun)
	if err != nil {
		log.Fatalf("Failed to sweep %s: %v", root, err)
	}

	for _, e := range result.Removed {
		log.Printf("  - %s (%s, %s old)", e.Path, formatSize(e.Size), time.Since(e.ModTime).Round(time.Hour))
	}

	// 输出统计
	log.Println(strings.Repeat("=", 60))
	log.Printf("Expired dirs: %d", len(result.Removed))
	log.Printf("Freed space: %s", formatSize(result.Bytes))
	log.Printf("Remaining usage: %s", formatSize(cron.DirSize(root)))
	if *dryRun {
		log.Println("DRY RUN MODE - No files were actually deleted")
		log.Println("Run with -dry-run=false to actually delete files")
	} else {
		log.Println("Cleanup completed")
	}
	log.Println(strings.Repeat("=", 60))
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
