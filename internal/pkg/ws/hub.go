package ws

import (
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultWriteWait 单次写入的最长等待时间
const DefaultWriteWait = 10 * time.Second

var ErrWriteTimeout = errors.New("websocket write timed out")

// Conn 订阅者连接，*websocket.Conn 满足此接口
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event 进度事件，Percent 为空时不下发该字段
type Event struct {
	Status  string `json:"status"`
	Percent *int   `json:"percent,omitempty"`
}

// NewEvent 带百分比的事件
func NewEvent(status string, percent int) Event {
	return Event{Status: status, Percent: &percent}
}

// Final 任务结束事件，发送后关闭该任务的全部订阅者
func (e Event) Final() bool {
	return e.Percent != nil && *e.Percent >= 100
}

// Subscriber 注册在某一个任务下的连接
type Subscriber struct {
	JobID string
	conn  Conn

	mu        sync.Mutex // 写锁，防止并发写入
	closeOnce sync.Once
}

// send 等待写入完成，超过 wait 返回 ErrWriteTimeout，写入交给连接关闭来中断
func (s *Subscriber) send(ev Event, wait time.Duration) error {
	done := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		done <- s.conn.WriteJSON(ev)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

// Hub 按任务 ID 维护订阅者。不缓存事件，晚到的订阅者收不到之前的事件
type Hub struct {
	// 同一任务可以有多个观察者（多标签页、CLI 等）
	subs map[string]map[*Subscriber]struct{}
	mu   sync.RWMutex

	writeWait time.Duration
}

// Option 配置 Hub
type Option func(*Hub)

// WithWriteWait 设置单个订阅者的写入超时
func WithWriteWait(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[string]map[*Subscriber]struct{}),
		writeWait: DefaultWriteWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Subscribe(jobID string, conn Conn) *Subscriber {
	sub := &Subscriber{JobID: jobID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*Subscriber]struct{})
	}
	h.subs[jobID][sub] = struct{}{}

	log.Printf("Job %s subscriber connected, job_subs: %d, total: %d", jobID, len(h.subs[jobID]), h.countLocked())
	return sub
}

// Unsubscribe 移除并关闭订阅者，可重复调用
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if subs, ok := h.subs[sub.JobID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.JobID)
		}
	}
	h.mu.Unlock()

	sub.close()
}

// Publish 向任务的全部订阅者发送事件。发送失败或超时的订阅者被静默移除，
// 结束事件发出后该任务的订阅者全部关闭
func (h *Hub) Publish(jobID string, ev Event) {
	h.mu.RLock()
	subs, ok := h.subs[jobID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// 复制一份引用，避免写入时持锁
	targets := make([]*Subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(ev, h.writeWait); err != nil {
			log.Printf("Job %s dropping subscriber: %v", jobID, err)
			h.Unsubscribe(s)
		}
	}

	if ev.Final() {
		h.mu.Lock()
		done := h.subs[jobID]
		delete(h.subs, jobID)
		h.mu.Unlock()
		for s := range done {
			s.close()
		}
	}
}

// SubscriberCount 任务当前的订阅者数量
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

// HasJob 任务是否仍有登记项
func (h *Hub) HasJob(jobID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[jobID]
	return ok
}

// ConnectionCount 全部连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	total := 0
	for _, subs := range h.subs {
		total += len(subs)
	}
	return total
}

// Close 关闭全部连接
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, subs := range all {
		for s := range subs {
			s.close()
		}
	}
}
