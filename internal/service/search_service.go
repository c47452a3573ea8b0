package service

import (
	"context"

	"chatbox-go/internal/config"
	"chatbox-go/internal/model"
	"chatbox-go/pkg/es"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchService 定义了消息全文检索的业务接口。
type SearchService interface {
	SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageDocument, error)
}

type searchService struct {
	esClient *elasticsearch.Client
	cfg      config.ElasticsearchConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esClient *elasticsearch.Client, cfg config.ElasticsearchConfig) SearchService {
	return &searchService{esClient: esClient, cfg: cfg}
}

// SearchMessages 在当前用户的历史消息中做全文检索。
func (s *searchService) SearchMessages(ctx context.Context, userID uint, query string, size int) ([]model.MessageDocument, error) {
	if size <= 0 || size > 50 {
		size = 10
	}
	return es.SearchMessages(ctx, s.esClient, s.cfg.IndexName, userID, query, size)
}
