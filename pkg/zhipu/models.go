package zhipu

// Message 表示一条角色消息，role 为 "user" 或 "assistant"。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ===================== 文本对话 =====================

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ===================== 文生图（CogView） =====================

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
}

type imageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ===================== 文生视频（CogVideoX 异步任务） =====================

type videoRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Size      string `json:"size,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	WithAudio bool   `json:"with_audio,omitempty"`
}

type videoTaskResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	TaskStatus string `json:"task_status"`
}

type videoResultResponse struct {
	Model       string `json:"model"`
	TaskStatus  string `json:"task_status"`
	RequestID   string `json:"request_id"`
	VideoResult []struct {
		URL           string `json:"url"`
		CoverImageURL string `json:"cover_image_url"`
	} `json:"video_result"`
}

// 远端任务状态取值（task_status 字段）。
const (
	TaskStatusPending    = "PENDING"
	TaskStatusProcessing = "PROCESSING"
	TaskStatusSuccess    = "SUCCESS"
	TaskStatusFailed     = "FAILED"
)

// TaskResult 是一次任务状态查询的结果。
type TaskResult struct {
	Status   string
	URL      string
	CoverURL string
}
