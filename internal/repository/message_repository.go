package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatbox-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 接口定义了消息的持久化操作。
// 消息是仅追加的：除会话级联删除外没有修改和删除入口。
type MessageRepository interface {
	Append(ctx context.Context, conversationID uint, isUser bool, text string) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID uint) ([]model.Message, error)
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
// 同一会话的并发写入通过按会话分键的互斥锁串行化，
// 保证时间戳顺序不被打乱；不同会话之间互不阻塞。
type messageRepository struct {
	db    *gorm.DB
	locks sync.Map // conversationID -> *sync.Mutex
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) lockFor(conversationID uint) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Append 向指定会话追加一条消息。
// 时间戳由存储层在插入时分配，并钳制为不早于该会话最后一条消息，
// 保证同一会话内时间戳单调不减；会话不存在时返回 ErrConversationNotFound。
// 事务提交后消息即已落盘，调用方返回前写入是持久的。
func (r *messageRepository) Append(ctx context.Context, conversationID uint, isUser bool, text string) (*model.Message, error) {
	mu := r.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	msg := &model.Message{
		ConversationID: conversationID,
		IsUser:         isUser,
		Text:           text,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}

		ts := time.Now()
		var last model.Message
		err := tx.Where("conversation_id = ?", conversationID).
			Order("timestamp DESC, id DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}
		msg.Timestamp = ts

		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByConversation 返回会话内的全部消息，按时间戳升序，
// 时间戳相同时按插入顺序（自增 ID）排序。
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uint) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}
