package service

import (
	"context"
	"errors"

	"chatbox-go/internal/model"
	"chatbox-go/internal/repository"
)

// ErrConversationForbidden 表示会话不属于当前用户。
var ErrConversationForbidden = errors.New("无权访问该会话")

// ConversationService 定义了会话管理的业务接口。
type ConversationService interface {
	List(ctx context.Context, userID uint) ([]model.Conversation, error)
	Create(ctx context.Context, userID uint) (*model.Conversation, error)
	Delete(ctx context.Context, userID, conversationID uint) error
	ListMessages(ctx context.Context, userID, conversationID uint) ([]model.Message, error)
	CheckOwnership(ctx context.Context, userID, conversationID uint) (*model.Conversation, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// List 返回用户的全部会话，最近更新的排在最前。
func (s *conversationService) List(ctx context.Context, userID uint) ([]model.Conversation, error) {
	return s.conversationRepo.ListByUser(ctx, userID)
}

// Create 为用户创建一个带占位标题的新会话。
func (s *conversationService) Create(ctx context.Context, userID uint) (*model.Conversation, error) {
	return s.conversationRepo.Create(ctx, userID)
}

// Delete 删除用户自己的会话，消息随之级联删除。
func (s *conversationService) Delete(ctx context.Context, userID, conversationID uint) error {
	if _, err := s.CheckOwnership(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.conversationRepo.Delete(ctx, conversationID)
}

// ListMessages 返回会话内的全部消息，按时间升序。
func (s *conversationService) ListMessages(ctx context.Context, userID, conversationID uint) ([]model.Message, error) {
	if _, err := s.CheckOwnership(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

// CheckOwnership 校验会话存在且属于指定用户。
func (s *conversationService) CheckOwnership(ctx context.Context, userID, conversationID uint) (*model.Conversation, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrConversationForbidden
	}
	return conv, nil
}
