package service

import (
	"context"

	"chatbox-go/internal/model"
	"chatbox-go/pkg/kafka"
	"chatbox-go/pkg/tasks"
)

// kafkaIndexer 把落库后的消息转换成索引任务投递到 Kafka，
// 由后台消费者写入 Elasticsearch。
type kafkaIndexer struct {
	producer *kafka.Producer
}

// NewKafkaIndexer 创建一个基于 Kafka 的 MessageIndexer。
func NewKafkaIndexer(producer *kafka.Producer) MessageIndexer {
	return &kafkaIndexer{producer: producer}
}

// IndexMessage 投递一条消息索引任务。
func (i *kafkaIndexer) IndexMessage(ctx context.Context, userID uint, msg *model.Message) error {
	return i.producer.ProduceIndexTask(ctx, tasks.MessageIndexTask{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Role:           msg.Role(),
		Text:           msg.Text,
		Timestamp:      msg.Timestamp.UnixMilli(),
	})
}
