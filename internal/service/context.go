// Package service 包含了应用的业务逻辑层。
package service

import (
	"chatbox-go/internal/model"
	"chatbox-go/pkg/zhipu"
)

// assembleTurns 把会话内的消息转换成按时间升序的角色消息序列。
// 媒体消息中的前缀文本原样保留，不做解码或剥离。
func assembleTurns(messages []model.Message) []zhipu.Message {
	turns := make([]zhipu.Message, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, zhipu.Message{Role: m.Role(), Content: m.Text})
	}
	return turns
}

// capTurns 截取最近的 limit 条完整轮次以控制请求体大小。
// 截取以整条消息为单位，不会拆开半条；limit<=0 表示不截取。
func capTurns(turns []zhipu.Message, limit int) []zhipu.Message {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
