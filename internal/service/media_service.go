package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatbox-go/internal/config"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/storage"

	"github.com/minio/minio-go/v7"
)

// MediaService 在 MediaArchiver 之上补充已归档媒体的读取能力。
type MediaService interface {
	MediaArchiver
	// PresignedURL 为已归档的媒体对象生成限时下载链接。
	PresignedURL(ctx context.Context, conversationID, messageID uint) (string, error)
}

// mediaService 把生成成功的图片/视频归档到对象存储。
// 智谱返回的结果 URL 有有效期，归档后可以长期回看。
// 归档过程是尽力而为的后台动作，失败只记日志，从不影响用户操作。
type mediaService struct {
	minioClient *minio.Client
	cfg         config.MinIOConfig
	httpClient  *http.Client
}

// NewMediaService 创建一个基于 MinIO 的 MediaService。
func NewMediaService(minioClient *minio.Client, cfg config.MinIOConfig) MediaService {
	return &mediaService{
		minioClient: minioClient,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func mediaObjectName(conversationID, messageID uint) string {
	return fmt.Sprintf("media/%d/%d", conversationID, messageID)
}

// PresignedURL 为已归档的媒体对象生成限时下载链接。
func (s *mediaService) PresignedURL(ctx context.Context, conversationID, messageID uint) (string, error) {
	return storage.GetPresignedURL(ctx, s.minioClient, s.cfg.BucketName, mediaObjectName(conversationID, messageID), time.Hour)
}

// Archive 异步下载媒体文件并写入存储桶。
func (s *mediaService) Archive(conversationID uint, messageID uint, url string) {
	go s.archive(conversationID, messageID, url)
}

func (s *mediaService) archive(conversationID uint, messageID uint, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warnf("归档媒体失败（构造请求）: messageID=%d, error: %v", messageID, err)
		return
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Warnf("归档媒体失败（下载）: messageID=%d, error: %v", messageID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("归档媒体失败（HTTP %d）: messageID=%d", resp.StatusCode, messageID)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectName := mediaObjectName(conversationID, messageID)

	if err := storage.PutObject(ctx, s.minioClient, s.cfg.BucketName, objectName, resp.Body, resp.ContentLength, contentType); err != nil {
		log.Warnf("归档媒体失败（写入对象存储）: messageID=%d, error: %v", messageID, err)
		return
	}
	log.Infof("媒体归档完成: conversationID=%d, messageID=%d, object=%s", conversationID, messageID, objectName)
}
