package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/qs3c/bug_triage_server/internal/pkg/pubsub"
	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
)

// 固定进度节点
const (
	percentIntake       = 5
	percentGroupStart   = 10
	percentGroupDone    = 15
	percentDone         = 100
	milestonesPerGroup  = 3 // 分析、复核、保存
	percentAnalysisSpan = percentDone - percentGroupDone
)

// ProgressSink 进度事件出口，*ws.Hub 和 *RelaySink 都满足
type ProgressSink interface {
	Publish(jobID string, ev ws.Event)
}

// tracker 任务级进度计数。事件在锁内发出，单个订阅者看到的百分比不会回退
type tracker struct {
	jobID string
	sink  ProgressSink

	mu    sync.Mutex
	total int
	done  int
	last  int
}

func newTracker(jobID string, sink ProgressSink) *tracker {
	return &tracker{jobID: jobID, sink: sink}
}

// setGroups 设置分组数，之后每个里程碑推进 85/(3*groups)
func (t *tracker) setGroups(groups int) {
	t.mu.Lock()
	t.total = groups * milestonesPerGroup
	t.mu.Unlock()
}

func (t *tracker) emit(status string, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishLocked(status, percent)
}

// step 完成一个里程碑
func (t *tracker) step(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done < t.total {
		t.done++
	}
	percent := percentGroupDone
	if t.total > 0 {
		percent += t.done * percentAnalysisSpan / t.total
	}
	t.publishLocked(status, percent)
}

func (t *tracker) publishLocked(status string, percent int) {
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	if t.sink != nil {
		t.sink.Publish(t.jobID, ws.NewEvent(status, percent))
	}
}

// RelaySink 通过 Redis 发布进度，由各服务进程的 RelayToHub 转发给本地订阅者
type RelaySink struct {
	publisher *pubsub.Publisher
}

func NewRelaySink(publisher *pubsub.Publisher) *RelaySink {
	return &RelaySink{publisher: publisher}
}

func (s *RelaySink) Publish(jobID string, ev ws.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := &pubsub.ProgressMessage{JobID: jobID, Status: ev.Status, Percent: ev.Percent}
	if err := s.publisher.PublishProgress(ctx, msg); err != nil {
		log.Printf("Job %s: failed to relay progress: %v", jobID, err)
	}
}

// RelayToHub 订阅 Redis 进度并投递到本地 Hub，阻塞直到 ctx 结束
func RelayToHub(ctx context.Context, sub *pubsub.Subscriber, hub *ws.Hub) error {
	return sub.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
		hub.Publish(msg.JobID, ws.Event{Status: msg.Status, Percent: msg.Percent})
	})
}
