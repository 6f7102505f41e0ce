package worker

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

var ErrShuttingDown = errors.New("worker is shutting down")

// Supervisor 在进程内后台运行任务。每个任务有独立的错误边界，
// 已接受的任务不可取消，Shutdown 等待它们全部结束
type Supervisor struct {
	runner Runner

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

func NewSupervisor(runner Runner) *Supervisor {
	return &Supervisor{runner: runner}
}

// Dispatch 接受任务并立即返回
func (s *Supervisor) Dispatch(_ context.Context, msg *queue.JobMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Job %s: pipeline panicked: %v\n%s", msg.JobID, r, debug.Stack())
			}
		}()
		// 任务生命周期与提交请求无关
		s.runner.Run(context.Background(), msg)
	}()
	return nil
}

// Active 正在运行的任务数
func (s *Supervisor) Active() int {
	return int(s.active.Load())
}

// Shutdown 停止接受新任务并等待已有任务结束
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
