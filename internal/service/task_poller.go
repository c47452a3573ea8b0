package service

import (
	"context"
	"errors"
	"time"

	"chatbox-go/internal/repository"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/zhipu"
)

// 任务轮询的终结错误。二者都是终态，不会被再次轮询；
// 轮询中的 429 直接透传 zhipu.ErrRateLimited，与这两个错误可区分。
var (
	// ErrTaskFailed 表示远端明确报告任务失败。
	ErrTaskFailed = errors.New("视频生成任务失败")
	// ErrTaskTimeout 表示轮询次数耗尽仍未到达终态。
	ErrTaskTimeout = errors.New("视频生成超时，请稍后重试")
)

// 本地任务状态机：SUBMITTED → PROCESSING → {SUCCESS | FAILED | TIMED_OUT}
const (
	taskStateSubmitted  = "SUBMITTED"
	taskStateProcessing = "PROCESSING"
	taskStateSuccess    = "SUCCESS"
	taskStateFailed     = "FAILED"
	taskStateTimedOut   = "TIMED_OUT"
)

// TaskPoller 驱动一个异步视频任务直到终态。
// 固定间隔轮询、次数有上限；远端报 FAILED 立即终止；
// 429 对任务是致命的（不会静默重试）；ctx 取消后不再发起轮询。
type TaskPoller struct {
	client      zhipu.Client
	statusRepo  repository.TaskStatusRepository
	interval    time.Duration
	maxAttempts int
}

// NewTaskPoller 创建一个新的 TaskPoller。
// statusRepo 可为 nil，此时不对外暴露任务进度。
func NewTaskPoller(client zhipu.Client, statusRepo repository.TaskStatusRepository, interval time.Duration, maxAttempts int) *TaskPoller {
	return &TaskPoller{
		client:      client,
		statusRepo:  statusRepo,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

func (p *TaskPoller) record(ctx context.Context, taskID, state string, attempt int, result *zhipu.TaskResult) {
	if p.statusRepo == nil {
		return
	}
	status := &repository.TaskStatus{
		TaskID:  taskID,
		Status:  state,
		Attempt: attempt,
	}
	if result != nil {
		status.URL = result.URL
		status.CoverURL = result.CoverURL
	}
	if err := p.statusRepo.Set(ctx, status); err != nil {
		log.Warnf("写入任务状态失败: taskID=%s, error: %v", taskID, err)
	}
}

// Poll 轮询任务直到终态并返回结果。
// 返回错误为 ErrTaskFailed / ErrTaskTimeout / zhipu.ErrRateLimited /
// 传输或远端错误 / ctx 错误之一。
func (p *TaskPoller) Poll(ctx context.Context, taskID string) (*zhipu.TaskResult, error) {
	p.record(ctx, taskID, taskStateSubmitted, 0, nil)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		result, err := p.client.PollTask(ctx, taskID)
		if err != nil {
			// 429 与其它传输/远端错误都终止任务并原样上抛
			return nil, err
		}

		switch result.Status {
		case zhipu.TaskStatusSuccess:
			if result.URL != "" {
				p.record(ctx, taskID, taskStateSuccess, attempt, result)
				return result, nil
			}
			// SUCCESS 但没有结果 URL，继续等下一轮
			p.record(ctx, taskID, taskStateProcessing, attempt, nil)
		case zhipu.TaskStatusFailed:
			p.record(ctx, taskID, taskStateFailed, attempt, nil)
			return nil, ErrTaskFailed
		default:
			p.record(ctx, taskID, taskStateProcessing, attempt, nil)
		}

		timer.Reset(p.interval)
	}

	p.record(ctx, taskID, taskStateTimedOut, p.maxAttempts, nil)
	return nil, ErrTaskTimeout
}
