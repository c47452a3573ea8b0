package service

import (
	"context"
	"strings"

	"chatbox-go/internal/model"
	"chatbox-go/internal/repository"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/zhipu"
)

// 消息文本里的识别前缀与回复模板。
// 前端按这些字面量做模式匹配渲染，修改会破坏对外兼容，必须逐字保留。
const (
	imageRequestPrefix = "[图片请求] "
	videoRequestPrefix = "[视频请求] "
	imageReplyPrefix   = "图片已生成："
	videoReplyPrefix   = "视频已生成："
	videoCoverPrefix   = "封面："
	// 对话接口返回空补全时写入的兜底文案
	emptyReplyFallback = "（模型未返回内容）"
)

// 自动标题最多保留的字符数，超出部分以省略号结尾。
const titleMaxRunes = 18

// MessageNotifier 在消息落库后通知订阅方（如 WebSocket 集线器）。
type MessageNotifier interface {
	MessageAppended(conversationID uint, msg *model.Message)
}

// MessageIndexer 在消息落库后把消息投递到检索索引管道。
type MessageIndexer interface {
	IndexMessage(ctx context.Context, userID uint, msg *model.Message) error
}

// MediaArchiver 在生成成功后归档媒体文件（远端 URL 会过期）。
type MediaArchiver interface {
	Archive(conversationID uint, messageID uint, url string)
}

// ChatService 是面向调用方的编排门面：
// 三个操作都遵循同一形态——先持久化用户消息，再调用远端生成，
// 成功则追加一条助手消息，最后维护会话标题与更新时间。
// 失败时不写助手消息，用户消息保持已持久化，错误原样上抛。
type ChatService interface {
	SendText(ctx context.Context, conversationID uint, text string) (*model.Message, error)
	GenerateImage(ctx context.Context, conversationID uint, prompt string) (*model.Message, error)
	GenerateVideo(ctx context.Context, conversationID uint, prompt string) (*model.Message, error)
}

type chatService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	client           zhipu.Client
	poller           *TaskPoller
	historyLimit     int

	// 可选协作方，未注入时对应环节静默跳过
	notifier MessageNotifier
	indexer  MessageIndexer
	archiver MediaArchiver
}

// NewChatService 创建一个新的 ChatService 实例。
// notifier / indexer / archiver 均可为 nil。
func NewChatService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	client zhipu.Client,
	poller *TaskPoller,
	historyLimit int,
	notifier MessageNotifier,
	indexer MessageIndexer,
	archiver MediaArchiver,
) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		client:           client,
		poller:           poller,
		historyLimit:     historyLimit,
		notifier:         notifier,
		indexer:          indexer,
		archiver:         archiver,
	}
}

// SendText 处理一轮文本对话。
func (s *chatService) SendText(ctx context.Context, conversationID uint, text string) (*model.Message, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// 1. 先把用户消息持久化，再发起远端调用
	if _, err := s.appendMessage(ctx, conv, true, text); err != nil {
		return nil, err
	}

	// 2. 以当前全部历史构建上下文，并截取最近 N 条完整轮次
	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turns := capTurns(assembleTurns(messages), s.historyLimit)

	// 3. 调用对话接口
	reply, err := s.client.Chat(ctx, turns)
	if err != nil {
		return nil, err
	}
	if reply == "" {
		// 空补全是唯一本地兜底的失败，其余错误一律上抛
		reply = emptyReplyFallback
	}

	// 4. 追加助手消息并维护会话元数据
	assistant, err := s.appendMessage(ctx, conv, false, reply)
	if err != nil {
		return nil, err
	}
	if err := s.finalizeConversation(ctx, conv, text, assistant); err != nil {
		return nil, err
	}
	return assistant, nil
}

// GenerateImage 处理一次文生图请求。
func (s *chatService) GenerateImage(ctx context.Context, conversationID uint, prompt string) (*model.Message, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(ctx, conv, true, imageRequestPrefix+prompt); err != nil {
		return nil, err
	}

	url, err := s.client.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, err
	}

	assistant, err := s.appendMessage(ctx, conv, false, imageReplyPrefix+url)
	if err != nil {
		return nil, err
	}
	if err := s.finalizeConversation(ctx, conv, prompt, assistant); err != nil {
		return nil, err
	}
	if s.archiver != nil {
		s.archiver.Archive(conv.ID, assistant.ID, url)
	}
	return assistant, nil
}

// GenerateVideo 处理一次文生视频请求：提交任务、轮询至终态、写入结果。
// FAILED / 超时 / 轮询 429 都只保留用户请求消息，不写助手消息。
func (s *chatService) GenerateVideo(ctx context.Context, conversationID uint, prompt string) (*model.Message, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(ctx, conv, true, videoRequestPrefix+prompt); err != nil {
		return nil, err
	}

	taskID, err := s.client.SubmitVideoTask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	log.Infof("视频任务已创建: conversationID=%d, taskID=%s", conversationID, taskID)

	result, err := s.poller.Poll(ctx, taskID)
	if err != nil {
		return nil, err
	}

	reply := videoReplyPrefix + result.URL
	if result.CoverURL != "" {
		reply += "\n" + videoCoverPrefix + result.CoverURL
	}

	assistant, err := s.appendMessage(ctx, conv, false, reply)
	if err != nil {
		return nil, err
	}
	if err := s.finalizeConversation(ctx, conv, prompt, assistant); err != nil {
		return nil, err
	}
	if s.archiver != nil {
		s.archiver.Archive(conv.ID, assistant.ID, result.URL)
	}
	return assistant, nil
}

// appendMessage 持久化一条消息，并在落库后通知订阅方、投递索引任务。
// 通知与索引都是尽力而为，失败只记日志，不影响主流程。
func (s *chatService) appendMessage(ctx context.Context, conv *model.Conversation, isUser bool, text string) (*model.Message, error) {
	msg, err := s.messageRepo.Append(ctx, conv.ID, isUser, text)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.MessageAppended(conv.ID, msg)
	}
	if s.indexer != nil {
		// 消息已持久化，索引投递不随请求取消而丢失
		if err := s.indexer.IndexMessage(context.Background(), conv.UserID, msg); err != nil {
			log.Warnf("投递消息索引任务失败: messageID=%d, error: %v", msg.ID, err)
		}
	}
	return msg, nil
}

// finalizeConversation 更新会话元数据：
// updatedAt 取最新助手消息的时间戳；标题只在仍是占位标题时
// 由首条有效用户输入自动生成一次，此后不再改写。
func (s *chatService) finalizeConversation(ctx context.Context, conv *model.Conversation, userInput string, assistant *model.Message) error {
	if conv.HasPlaceholderTitle() {
		conv.Title = deriveTitle(userInput)
	}
	conv.UpdatedAt = assistant.Timestamp
	return s.conversationRepo.Update(ctx, conv)
}

// deriveTitle 从用户输入生成会话标题：去掉首尾空白，
// 超过 18 个字符时截断并追加省略号；空输入保持占位标题。
func deriveTitle(userInput string) string {
	trimmed := strings.TrimSpace(userInput)
	if trimmed == "" {
		return model.PlaceholderTitle
	}
	runes := []rune(trimmed)
	if len(runes) <= titleMaxRunes {
		return trimmed
	}
	return string(runes[:titleMaxRunes]) + "…"
}
