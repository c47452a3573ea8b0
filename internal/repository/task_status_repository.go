package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TaskStatus 是一次视频生成任务的瞬时状态快照。
// 它只在任务存续期间存在于 Redis 中，任务终结后随 TTL 过期，不做持久化。
type TaskStatus struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Attempt   int    `json:"attempt"`
	URL       string `json:"url,omitempty"`
	CoverURL  string `json:"coverUrl,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// TaskStatusRepository 定义了视频任务状态的临时存取接口，
// 供前端在任务轮询期间查询进度。
type TaskStatusRepository interface {
	Set(ctx context.Context, status *TaskStatus) error
	Get(ctx context.Context, taskID string) (*TaskStatus, error)
}

type redisTaskStatusRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewTaskStatusRepository 创建一个基于 Redis 的 TaskStatusRepository。
func NewTaskStatusRepository(redisClient *redis.Client) TaskStatusRepository {
	return &redisTaskStatusRepository{
		redisClient: redisClient,
		ttl:         10 * time.Minute,
	}
}

func taskKey(taskID string) string {
	return fmt.Sprintf("video_task:%s", taskID)
}

// Set 写入任务的最新状态快照。
func (r *redisTaskStatusRepository) Set(ctx context.Context, status *TaskStatus) error {
	status.UpdatedAt = time.Now().UnixMilli()
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("序列化任务状态失败: %w", err)
	}
	if err := r.redisClient.Set(ctx, taskKey(status.TaskID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("写入任务状态失败: %w", err)
	}
	return nil
}

// Get 读取任务的最新状态快照；任务不存在或已过期时返回 nil。
func (r *redisTaskStatusRepository) Get(ctx context.Context, taskID string) (*TaskStatus, error) {
	jsonData, err := r.redisClient.Get(ctx, taskKey(taskID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取任务状态失败: %w", err)
	}
	var status TaskStatus
	if err := json.Unmarshal([]byte(jsonData), &status); err != nil {
		return nil, fmt.Errorf("解析任务状态失败: %w", err)
	}
	return &status, nil
}
