package model

import "time"

// 消息角色，与请求体里的 role 字段一致。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 代表会话中的一条消息，写入后不可变。
// 生成的图片/视频不使用独立类型，而是以带识别前缀的纯文本存储
// （如 "图片已生成：<url>"），前端按前缀匹配渲染，属于对外兼容约定。
// Timestamp 由存储层在插入时分配，同一会话内单调不减。
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversationId"`
	IsUser         bool      `gorm:"not null" json:"isUser"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

// Role 返回该消息在上下文中的角色标签。
func (m *Message) Role() string {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}
