package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

var ErrInvalidMessage = errors.New("invalid job message")

// Processor 处理从 Redis 队列取出的任务
type Processor struct {
	runner Runner
}

// NewProcessor 创建任务处理器
func NewProcessor(runner Runner) *Processor {
	return &Processor{runner: runner}
}

// Process 校验消息并同步执行任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	if msg == nil || msg.JobID == "" {
		return fmt.Errorf("%w: missing job id", ErrInvalidMessage)
	}
	if msg.ScratchDir == "" {
		return fmt.Errorf("%w: job %s has no scratch dir", ErrInvalidMessage, msg.JobID)
	}

	start := time.Now()
	log.Printf("Job %s: processing %d files", msg.JobID, len(msg.Files))
	summary := p.runner.Run(ctx, msg)
	log.Printf("Job %s: processed in %d seconds, %d groups, %d failed",
		msg.JobID, int(time.Since(start).Seconds()), summary.Groups, summary.FailedGroups)
	return nil
}
