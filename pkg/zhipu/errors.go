package zhipu

import (
	"errors"
	"fmt"
)

// 客户端错误分类。客户端自身从不重试，
// 重试与退避策略由调用方（业务层或其调用者）决定。
var (
	// ErrRateLimited 对应 HTTP 429：限流 / 额度受限，不是调用方参数错误。
	ErrRateLimited = errors.New("请求过于频繁或额度受限（429）")
	// ErrNoResult 表示 2xx 响应但内容为空（choices/data 为空），
	// 属于可区分的内容错误，不是传输错误。
	ErrNoResult = errors.New("接口返回成功但无结果")
)

// TransportError 表示请求未收到任何响应（网络层失败），调用方可重试。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("网络请求失败: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError 表示非 2xx 且非 429 的服务端响应，不会被自动重试。
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("服务端返回错误（HTTP %d）: %s", e.StatusCode, e.Body)
}
