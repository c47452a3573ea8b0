// Package zhipu 提供了调用智谱开放平台生成接口的无状态客户端。
package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chatbox-go/internal/config"
)

// Client 定义了生成客户端的接口。
// 四个操作各自独立、可由调用方重试；客户端内部不做任何重试。
type Client interface {
	// Chat 以完整上下文调用对话接口，返回首个补全的文本。
	// 响应中没有补全时返回空串，由业务层决定兜底文案。
	Chat(ctx context.Context, messages []Message) (string, error)
	// GenerateImage 同步生成一张图片并返回其 URL。
	GenerateImage(ctx context.Context, prompt string) (string, error)
	// SubmitVideoTask 创建一个异步视频生成任务，返回远端任务 ID。
	SubmitVideoTask(ctx context.Context, prompt string) (string, error)
	// PollTask 查询一次任务状态，单次网络往返，不在内部循环等待。
	PollTask(ctx context.Context, taskID string) (*TaskResult, error)
}

type zhipuClient struct {
	cfg    config.ZhipuConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的智谱客户端。
func NewClient(cfg config.ZhipuConfig) Client {
	return &zhipuClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// doJSON 执行一次请求并按统一的错误分类解码响应。
// 网络失败 -> *TransportError；429 -> ErrRateLimited；
// 其余非 2xx -> *RemoteError；2xx 解码到 out。
func (c *zhipuClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(reqBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// Chat 调用 chat/completions 接口。
func (c *zhipuClient) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Temperature: 0.8,
		TopP:        0.7,
	}
	var decoded chatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/paas/v4/chat/completions", reqBody, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}

// GenerateImage 调用 images/generations 接口。
// 2xx 但 data 为空时返回 ErrNoResult。
func (c *zhipuClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	reqBody := imageRequest{
		Model:  c.cfg.ImageModel,
		Prompt: prompt,
		Size:   "1024x1024",
	}
	var decoded imageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/paas/v4/images/generations", reqBody, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Data) == 0 || decoded.Data[0].URL == "" {
		return "", ErrNoResult
	}
	return decoded.Data[0].URL, nil
}

// SubmitVideoTask 调用 videos/generations 接口创建异步任务。
func (c *zhipuClient) SubmitVideoTask(ctx context.Context, prompt string) (string, error) {
	reqBody := videoRequest{
		Model:     c.cfg.VideoModel,
		Prompt:    prompt,
		WithAudio: true,
	}
	var decoded videoTaskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/paas/v4/videos/generations", reqBody, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", ErrNoResult
	}
	return decoded.ID, nil
}

// PollTask 调用 async-result 接口查询一次任务状态。
func (c *zhipuClient) PollTask(ctx context.Context, taskID string) (*TaskResult, error) {
	var decoded videoResultResponse
	if err := c.doJSON(ctx, http.MethodGet, "/paas/v4/async-result/"+taskID, nil, &decoded); err != nil {
		return nil, err
	}
	result := &TaskResult{Status: decoded.TaskStatus}
	if len(decoded.VideoResult) > 0 {
		result.URL = decoded.VideoResult[0].URL
		result.CoverURL = decoded.VideoResult[0].CoverImageURL
	}
	return result, nil
}
