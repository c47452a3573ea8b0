// Package pipeline 实现了消息索引任务的消费端处理逻辑。
package pipeline

import (
	"context"
	"fmt"

	"chatbox-go/internal/model"
	"chatbox-go/pkg/es"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/tasks"

	"github.com/elastic/go-elasticsearch/v8"
)

// IndexProcessor 消费 Kafka 里的消息索引任务，并写入 Elasticsearch。
type IndexProcessor struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewIndexProcessor 创建一个新的 IndexProcessor。
func NewIndexProcessor(esClient *elasticsearch.Client, indexName string) *IndexProcessor {
	return &IndexProcessor{esClient: esClient, indexName: indexName}
}

// Process 将一条消息索引任务转换为检索文档并写入索引。
// DocID 取 "msg-<消息ID>"，重复消费时覆盖同一文档，天然幂等。
func (p *IndexProcessor) Process(ctx context.Context, task tasks.MessageIndexTask) error {
	doc := model.MessageDocument{
		DocID:          fmt.Sprintf("msg-%d", task.MessageID),
		MessageID:      task.MessageID,
		ConversationID: task.ConversationID,
		UserID:         task.UserID,
		Role:           task.Role,
		Text:           task.Text,
		Timestamp:      task.Timestamp,
	}

	if err := es.IndexMessage(ctx, p.esClient, p.indexName, doc); err != nil {
		log.Errorf("索引消息文档失败: messageID=%d, error: %v", task.MessageID, err)
		return err
	}

	log.Infof("消息已写入检索索引: messageID=%d, conversationID=%d", task.MessageID, task.ConversationID)
	return nil
}
