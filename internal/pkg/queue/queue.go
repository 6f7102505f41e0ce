package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultQueueName = "triage_jobs"

type Queue struct {
	client    *redis.Client
	queueName string
}

// FileRef 一个待分析文件。Path 为相对任务临时目录的 / 分隔路径
type FileRef struct {
	Path             string `json:"path"`
	OriginalFilename string `json:"original_filename"`
}

// JobMessage 一个任务的全部执行信息，内联模式和 Redis 模式共用
type JobMessage struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	ProjectID   string    `json:"project_id"`
	Description string    `json:"description"`
	ScratchDir  string    `json:"scratch_dir"`
	Files       []FileRef `json:"files"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 将任务加入队列
func (q *Queue) Push(ctx context.Context, msg *JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Dispatch 以 Push 实现任务派发
func (q *Queue) Dispatch(ctx context.Context, msg *JobMessage) error {
	return q.Push(ctx, msg)
}

// Pop 从队列获取任务（阻塞）
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*JobMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无任务
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg JobMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
