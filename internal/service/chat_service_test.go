package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"chatbox-go/internal/model"
	"chatbox-go/internal/repository"
	"chatbox-go/pkg/zhipu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGenClient 是可配置返回值的生成客户端替身。
type fakeGenClient struct {
	chatReply string
	chatErr   error
	gotTurns  []zhipu.Message

	imageURL string
	imageErr error

	taskID     string
	submitErr  error
	pollResult *zhipu.TaskResult
	pollErr    error
}

func (c *fakeGenClient) Chat(ctx context.Context, messages []zhipu.Message) (string, error) {
	c.gotTurns = messages
	return c.chatReply, c.chatErr
}

func (c *fakeGenClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return c.imageURL, c.imageErr
}

func (c *fakeGenClient) SubmitVideoTask(ctx context.Context, prompt string) (string, error) {
	return c.taskID, c.submitErr
}

func (c *fakeGenClient) PollTask(ctx context.Context, taskID string) (*zhipu.TaskResult, error) {
	return c.pollResult, c.pollErr
}

type archiveCall struct {
	conversationID uint
	messageID      uint
	url            string
}

// recordingArchiver 记录归档调用，便于断言。
type recordingArchiver struct {
	calls []archiveCall
}

func (a *recordingArchiver) Archive(conversationID uint, messageID uint, url string) {
	a.calls = append(a.calls, archiveCall{conversationID, messageID, url})
}

type chatTestEnv struct {
	svc      ChatService
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	conv     *model.Conversation
	archiver *recordingArchiver
}

// newChatTestEnv 基于内存 SQLite 组装编排服务及其真实存储依赖。
func newChatTestEnv(t *testing.T, client zhipu.Client, historyLimit int) *chatTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Conversation{}, &model.Message{}))

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	conv, err := convRepo.Create(context.Background(), 1)
	require.NoError(t, err)

	archiver := &recordingArchiver{}
	poller := NewTaskPoller(client, nil, time.Millisecond, 5)
	svc := NewChatService(convRepo, msgRepo, client, poller, historyLimit, nil, nil, archiver)

	return &chatTestEnv{svc: svc, convRepo: convRepo, msgRepo: msgRepo, conv: conv, archiver: archiver}
}

func (e *chatTestEnv) messages(t *testing.T) []model.Message {
	t.Helper()
	msgs, err := e.msgRepo.ListByConversation(context.Background(), e.conv.ID)
	require.NoError(t, err)
	return msgs
}

func (e *chatTestEnv) reload(t *testing.T) *model.Conversation {
	t.Helper()
	conv, err := e.convRepo.FindByID(context.Background(), e.conv.ID)
	require.NoError(t, err)
	return conv
}

func TestChatService_SendText(t *testing.T) {
	client := &fakeGenClient{chatReply: "你好！有什么可以帮你？"}
	env := newChatTestEnv(t, client, 12)

	assistant, err := env.svc.SendText(context.Background(), env.conv.ID, "你好")
	require.NoError(t, err)
	assert.False(t, assistant.IsUser)
	assert.Equal(t, "你好！有什么可以帮你？", assistant.Text)

	msgs := env.messages(t)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "你好", msgs[0].Text)
	assert.Equal(t, assistant.ID, msgs[1].ID)

	conv := env.reload(t)
	assert.Equal(t, "你好", conv.Title)
	assert.True(t, conv.UpdatedAt.Equal(assistant.Timestamp))
}

func TestChatService_SendTextEmptyReplyFallback(t *testing.T) {
	client := &fakeGenClient{chatReply: ""}
	env := newChatTestEnv(t, client, 12)

	assistant, err := env.svc.SendText(context.Background(), env.conv.ID, "讲个笑话")
	require.NoError(t, err)
	assert.Equal(t, "（模型未返回内容）", assistant.Text)
}

func TestChatService_SendTextRemoteErrorKeepsUserMessage(t *testing.T) {
	client := &fakeGenClient{chatErr: &zhipu.RemoteError{StatusCode: 500, Body: "boom"}}
	env := newChatTestEnv(t, client, 12)
	before := env.reload(t)

	_, err := env.svc.SendText(context.Background(), env.conv.ID, "你好")
	var remoteErr *zhipu.RemoteError
	require.ErrorAs(t, err, &remoteErr)

	// 用户消息已持久化，但没有助手消息，会话元数据未变
	msgs := env.messages(t)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsUser)

	conv := env.reload(t)
	assert.Equal(t, model.PlaceholderTitle, conv.Title)
	assert.True(t, conv.UpdatedAt.Equal(before.UpdatedAt))
}

func TestChatService_TitleTruncation(t *testing.T) {
	client := &fakeGenClient{chatReply: "好的"}
	env := newChatTestEnv(t, client, 12)

	input := strings.Repeat("长", 25)
	_, err := env.svc.SendText(context.Background(), env.conv.ID, "  "+input+"  ")
	require.NoError(t, err)

	conv := env.reload(t)
	assert.Equal(t, strings.Repeat("长", 18)+"…", conv.Title)
}

func TestChatService_TitleSetOnce(t *testing.T) {
	client := &fakeGenClient{chatReply: "好的"}
	env := newChatTestEnv(t, client, 12)
	ctx := context.Background()

	_, err := env.svc.SendText(ctx, env.conv.ID, "第一条输入")
	require.NoError(t, err)
	_, err = env.svc.SendText(ctx, env.conv.ID, "第二条输入")
	require.NoError(t, err)

	conv := env.reload(t)
	assert.Equal(t, "第一条输入", conv.Title, "标题只在首次生成，之后不再改写")
}

func TestChatService_HistoryCap(t *testing.T) {
	client := &fakeGenClient{chatReply: "好的"}
	env := newChatTestEnv(t, client, 4)
	ctx := context.Background()

	// 预置 6 条历史，再发一条，共 7 条，上下文应只带最近 4 条
	for i := 0; i < 6; i++ {
		_, err := env.msgRepo.Append(ctx, env.conv.ID, i%2 == 0, fmt.Sprintf("历史%d", i))
		require.NoError(t, err)
	}

	_, err := env.svc.SendText(ctx, env.conv.ID, "最新输入")
	require.NoError(t, err)

	require.Len(t, client.gotTurns, 4)
	assert.Equal(t, "最新输入", client.gotTurns[3].Content)
	assert.Equal(t, "历史5", client.gotTurns[2].Content)
}

func TestChatService_GenerateImage(t *testing.T) {
	client := &fakeGenClient{imageURL: "https://example.com/cat.png"}
	env := newChatTestEnv(t, client, 12)

	assistant, err := env.svc.GenerateImage(context.Background(), env.conv.ID, "一只猫")
	require.NoError(t, err)
	assert.Equal(t, "图片已生成：https://example.com/cat.png", assistant.Text)

	msgs := env.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "[图片请求] 一只猫", msgs[0].Text)

	conv := env.reload(t)
	assert.Equal(t, "一只猫", conv.Title, "标题取原始提示词，不含前缀")

	require.Len(t, env.archiver.calls, 1)
	assert.Equal(t, archiveCall{env.conv.ID, assistant.ID, "https://example.com/cat.png"}, env.archiver.calls[0])
}

func TestChatService_GenerateImageNoResult(t *testing.T) {
	client := &fakeGenClient{imageErr: zhipu.ErrNoResult}
	env := newChatTestEnv(t, client, 12)
	before := env.reload(t)

	_, err := env.svc.GenerateImage(context.Background(), env.conv.ID, "一只猫")
	assert.ErrorIs(t, err, zhipu.ErrNoResult)

	msgs := env.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "[图片请求] 一只猫", msgs[0].Text)

	conv := env.reload(t)
	assert.Equal(t, model.PlaceholderTitle, conv.Title)
	assert.True(t, conv.UpdatedAt.Equal(before.UpdatedAt))
	assert.Empty(t, env.archiver.calls)
}

func TestChatService_GenerateVideoWithCover(t *testing.T) {
	client := &fakeGenClient{
		taskID: "task-1",
		pollResult: &zhipu.TaskResult{
			Status:   zhipu.TaskStatusSuccess,
			URL:      "https://example.com/v.mp4",
			CoverURL: "https://example.com/cover.png",
		},
	}
	env := newChatTestEnv(t, client, 12)

	assistant, err := env.svc.GenerateVideo(context.Background(), env.conv.ID, "海边日落")
	require.NoError(t, err)
	assert.Equal(t, "视频已生成：https://example.com/v.mp4\n封面：https://example.com/cover.png", assistant.Text)

	msgs := env.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "[视频请求] 海边日落", msgs[0].Text)

	require.Len(t, env.archiver.calls, 1)
	assert.Equal(t, "https://example.com/v.mp4", env.archiver.calls[0].url)
}

func TestChatService_GenerateVideoWithoutCover(t *testing.T) {
	client := &fakeGenClient{
		taskID:     "task-1",
		pollResult: &zhipu.TaskResult{Status: zhipu.TaskStatusSuccess, URL: "https://example.com/v.mp4"},
	}
	env := newChatTestEnv(t, client, 12)

	assistant, err := env.svc.GenerateVideo(context.Background(), env.conv.ID, "海边日落")
	require.NoError(t, err)
	assert.Equal(t, "视频已生成：https://example.com/v.mp4", assistant.Text)
}

func TestChatService_GenerateVideoFailed(t *testing.T) {
	client := &fakeGenClient{
		taskID:     "task-1",
		pollResult: &zhipu.TaskResult{Status: zhipu.TaskStatusFailed},
	}
	env := newChatTestEnv(t, client, 12)
	before := env.reload(t)

	_, err := env.svc.GenerateVideo(context.Background(), env.conv.ID, "海边日落")
	assert.ErrorIs(t, err, ErrTaskFailed)

	msgs := env.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "[视频请求] 海边日落", msgs[0].Text)

	conv := env.reload(t)
	assert.True(t, conv.UpdatedAt.Equal(before.UpdatedAt))
}

func TestChatService_ConversationNotFound(t *testing.T) {
	client := &fakeGenClient{chatReply: "好的"}
	env := newChatTestEnv(t, client, 12)

	_, err := env.svc.SendText(context.Background(), env.conv.ID+100, "你好")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)
}
