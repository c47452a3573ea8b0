// Package tasks 定义了投递到 Kafka 的任务结构。
package tasks

// MessageIndexTask 表示一条待写入检索索引的消息。
// 每次消息落库后由业务层投递，消费端负责写入 Elasticsearch。
type MessageIndexTask struct {
	MessageID      uint   `json:"message_id"`
	ConversationID uint   `json:"conversation_id"`
	UserID         uint   `json:"user_id"`
	Role           string `json:"role"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
}
