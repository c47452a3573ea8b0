package model

// MessageDocument 是写入 Elasticsearch 的消息检索文档。
// DocID 形如 "msg-<消息ID>"，与 MySQL 中的消息一一对应。
type MessageDocument struct {
	DocID          string `json:"doc_id"`
	MessageID      uint   `json:"message_id"`
	ConversationID uint   `json:"conversation_id"`
	UserID         uint   `json:"user_id"`
	Role           string `json:"role"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
}
