package repository

import (
	"context"
	"testing"
	"time"

	"chatbox-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 创建一个仅供单个测试使用的内存 SQLite 数据库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库随连接销毁，限制连接池为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Conversation{}, &model.Message{}))
	return db
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(&model.User{Username: "alice", Password: "hashed"}))

	err := repo.Create(&model.User{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserRepository_FindByUsernameNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.FindByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(&model.User{Username: "bob", Password: "old"}))
	require.NoError(t, repo.UpdatePassword("bob", "new"))

	user, err := repo.FindByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, "new", user.Password)

	assert.ErrorIs(t, repo.UpdatePassword("nobody", "x"), ErrUserNotFound)
}

func TestConversationRepository_CreatePlaceholderTitle(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	conv, err := repo.Create(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PlaceholderTitle, conv.Title)
	assert.True(t, conv.HasPlaceholderTitle())
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
}

func TestConversationRepository_FindByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)

	_, err := repo.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepository_ListByUserOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	older, err := repo.Create(ctx, 1)
	require.NoError(t, err)
	newer, err := repo.Create(ctx, 1)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 2) // 其它用户的会话不应出现
	require.NoError(t, err)

	// 把第二个会话的更新时间推后，确保排序可区分
	newer.UpdatedAt = older.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, newer))

	convs, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)
}

func TestConversationRepository_UpdateMissingIsNoop(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	err := repo.Update(ctx, &model.Conversation{ID: 999, Title: "ghost"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConversationRepository_UpdateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	conv, err := repo.Create(ctx, 1)
	require.NoError(t, err)
	conv.Title = "旅行计划"

	require.NoError(t, repo.Update(ctx, conv))
	require.NoError(t, repo.Update(ctx, conv))

	got, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "旅行计划", got.Title)
	assert.True(t, got.UpdatedAt.Equal(conv.UpdatedAt))
}

func TestConversationRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	ctx := context.Background()

	conv, err := convRepo.Create(ctx, 1)
	require.NoError(t, err)
	_, err = msgRepo.Append(ctx, conv.ID, true, "你好")
	require.NoError(t, err)
	_, err = msgRepo.Append(ctx, conv.ID, false, "你好！有什么可以帮你？")
	require.NoError(t, err)

	require.NoError(t, convRepo.Delete(ctx, conv.ID))

	_, err = convRepo.FindByID(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)

	// 删除不存在的会话是幂等的
	assert.NoError(t, convRepo.Delete(ctx, conv.ID))
}

func TestMessageRepository_AppendAndListOrder(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	ctx := context.Background()

	conv, err := convRepo.Create(ctx, 1)
	require.NoError(t, err)

	texts := []string{"第一条", "第二条", "第三条"}
	for i, text := range texts {
		msg, err := msgRepo.Append(ctx, conv.ID, i%2 == 0, text)
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
	}

	msgs, err := msgRepo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, text := range texts {
		assert.Equal(t, text, msgs[i].Text)
	}
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp),
			"时间戳必须单调不减")
	}
}

func TestMessageRepository_AppendClampsTimestamp(t *testing.T) {
	db := newTestDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)
	ctx := context.Background()

	conv, err := convRepo.Create(ctx, 1)
	require.NoError(t, err)

	// 直接塞入一条"来自未来"的消息，模拟时钟回拨
	future := time.Now().Add(time.Hour)
	require.NoError(t, db.Create(&model.Message{
		ConversationID: conv.ID,
		IsUser:         true,
		Text:           "未来的消息",
		Timestamp:      future,
	}).Error)

	msg, err := msgRepo.Append(ctx, conv.ID, false, "现在的消息")
	require.NoError(t, err)
	assert.False(t, msg.Timestamp.Before(future), "追加的消息不能早于已有消息")
}

func TestMessageRepository_AppendConversationNotFound(t *testing.T) {
	db := newTestDB(t)
	msgRepo := NewMessageRepository(db)

	_, err := msgRepo.Append(context.Background(), 12345, true, "无主消息")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}
