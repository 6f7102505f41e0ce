package status

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL 任务状态缓存时长
const DefaultTTL = 24 * time.Hour

// JobStatusKey 任务状态的 Redis key
func JobStatusKey(jobID string) string {
	return fmt.Sprintf("triage:job:%s:status", jobID)
}

// Store 基于 Redis 的任务状态缓存，过期后任务状态视为未知
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) SetJobStatus(ctx context.Context, jobID, status string) error {
	return s.client.Set(ctx, JobStatusKey(jobID), status, s.ttl).Err()
}

// GetJobStatus 第二个返回值表示缓存中是否存在
func (s *Store) GetJobStatus(ctx context.Context, jobID string) (string, bool, error) {
	val, err := s.client.Get(ctx, JobStatusKey(jobID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
