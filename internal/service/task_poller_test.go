package service

import (
	"context"
	"testing"
	"time"

	"chatbox-go/pkg/zhipu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollStep 描述一次 PollTask 调用的脚本化返回。
type pollStep struct {
	result *zhipu.TaskResult
	err    error
}

// scriptedClient 按脚本依次返回轮询结果，超出脚本后重复最后一步。
type scriptedClient struct {
	steps     []pollStep
	pollCalls int
}

func (c *scriptedClient) Chat(ctx context.Context, messages []zhipu.Message) (string, error) {
	return "", nil
}

func (c *scriptedClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func (c *scriptedClient) SubmitVideoTask(ctx context.Context, prompt string) (string, error) {
	return "task-1", nil
}

func (c *scriptedClient) PollTask(ctx context.Context, taskID string) (*zhipu.TaskResult, error) {
	idx := c.pollCalls
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	c.pollCalls++
	step := c.steps[idx]
	return step.result, step.err
}

func processingSteps(n int) []pollStep {
	steps := make([]pollStep, n)
	for i := range steps {
		steps[i] = pollStep{result: &zhipu.TaskResult{Status: zhipu.TaskStatusProcessing}}
	}
	return steps
}

func TestTaskPoller_SuccessAfterProcessing(t *testing.T) {
	steps := processingSteps(4)
	steps = append(steps, pollStep{result: &zhipu.TaskResult{
		Status:   zhipu.TaskStatusSuccess,
		URL:      "https://example.com/video.mp4",
		CoverURL: "https://example.com/cover.png",
	}})
	client := &scriptedClient{steps: steps}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	result, err := poller.Poll(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/video.mp4", result.URL)
	assert.Equal(t, "https://example.com/cover.png", result.CoverURL)
	assert.Equal(t, 5, client.pollCalls)
}

func TestTaskPoller_SuccessOnLastAttempt(t *testing.T) {
	steps := processingSteps(29)
	steps = append(steps, pollStep{result: &zhipu.TaskResult{
		Status: zhipu.TaskStatusSuccess,
		URL:    "https://example.com/video.mp4",
	}})
	client := &scriptedClient{steps: steps}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	result, err := poller.Poll(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/video.mp4", result.URL)
	assert.Equal(t, 30, client.pollCalls)
}

func TestTaskPoller_TimeoutAfterBudget(t *testing.T) {
	client := &scriptedClient{steps: processingSteps(1)}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	_, err := poller.Poll(context.Background(), "task-1")
	assert.ErrorIs(t, err, ErrTaskTimeout)
	// 预算耗尽前恰好轮询 maxAttempts 次
	assert.Equal(t, 30, client.pollCalls)
}

func TestTaskPoller_FailedStopsImmediately(t *testing.T) {
	client := &scriptedClient{steps: []pollStep{
		{result: &zhipu.TaskResult{Status: zhipu.TaskStatusFailed}},
	}}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	_, err := poller.Poll(context.Background(), "task-1")
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.Equal(t, 1, client.pollCalls)
}

func TestTaskPoller_SuccessWithoutURLKeepsPolling(t *testing.T) {
	// SUCCESS 但没有 URL 不算终态，下一轮拿到 URL 才返回
	client := &scriptedClient{steps: []pollStep{
		{result: &zhipu.TaskResult{Status: zhipu.TaskStatusSuccess}},
		{result: &zhipu.TaskResult{Status: zhipu.TaskStatusSuccess, URL: "https://example.com/v.mp4"}},
	}}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	result, err := poller.Poll(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v.mp4", result.URL)
	assert.Equal(t, 2, client.pollCalls)
}

func TestTaskPoller_RateLimitedIsFatal(t *testing.T) {
	client := &scriptedClient{steps: []pollStep{
		{err: zhipu.ErrRateLimited},
	}}

	poller := NewTaskPoller(client, nil, time.Millisecond, 30)
	_, err := poller.Poll(context.Background(), "task-1")
	assert.ErrorIs(t, err, zhipu.ErrRateLimited)
	assert.Equal(t, 1, client.pollCalls)
}

func TestTaskPoller_ContextCancel(t *testing.T) {
	client := &scriptedClient{steps: processingSteps(1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := NewTaskPoller(client, nil, time.Hour, 30)
	_, err := poller.Poll(ctx, "task-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.pollCalls, "取消后不应再发起轮询")
}
