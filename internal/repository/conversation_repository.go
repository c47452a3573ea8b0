package repository

import (
	"context"
	"errors"
	"time"

	"chatbox-go/internal/model"

	"gorm.io/gorm"
)

// ConversationRepository 接口定义了会话元数据的持久化操作。
type ConversationRepository interface {
	Create(ctx context.Context, userID uint) (*model.Conversation, error)
	FindByID(ctx context.Context, id uint) (*model.Conversation, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Conversation, error)
	Update(ctx context.Context, conv *model.Conversation) error
	Delete(ctx context.Context, id uint) error
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 创建一个带占位标题的新会话，createdAt 与 updatedAt 均为当前时间。
func (r *conversationRepository) Create(ctx context.Context, userID uint) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		UserID:    userID,
		Title:     model.PlaceholderTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// FindByID 根据会话 ID 查找会话。
func (r *conversationRepository) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser 返回用户的全部会话，按最近更新时间倒序。
func (r *conversationRepository) ListByUser(ctx context.Context, userID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// Update 按 ID 整体替换会话记录；目标不存在时为空操作。
// 使用显式字段更新而非 Save，避免对不存在的 ID 触发插入。
func (r *conversationRepository) Update(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"user_id":    conv.UserID,
			"title":      conv.Title,
			"created_at": conv.CreatedAt,
			"updated_at": conv.UpdatedAt,
		}).Error
}

// Delete 删除会话并级联删除其全部消息；对不存在的 ID 幂等。
func (r *conversationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, id).Error
	})
}
