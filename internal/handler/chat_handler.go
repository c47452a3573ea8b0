package handler

import (
	"errors"
	"net/http"
	"strconv"

	"chatbox-go/internal/hub"
	"chatbox-go/internal/repository"
	"chatbox-go/internal/service"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/token"
	"chatbox-go/pkg/zhipu"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理对话与生成相关的 API 请求，
// 以及消息列表变更的 WebSocket 订阅。
type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
	mediaService        service.MediaService
	taskStatusRepo      repository.TaskStatusRepository
	messageHub          *hub.Hub
	jwtManager          *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(
	chatService service.ChatService,
	conversationService service.ConversationService,
	mediaService service.MediaService,
	taskStatusRepo repository.TaskStatusRepository,
	messageHub *hub.Hub,
	jwtManager *token.JWTManager,
) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
		mediaService:        mediaService,
		taskStatusRepo:      taskStatusRepo,
		messageHub:          messageHub,
		jwtManager:          jwtManager,
	}
}

// ChatRequest 定义了三个生成操作共用的请求体结构。
type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

// respondGenerationError 把编排层的错误映射为 HTTP 响应。
// 失败只意味着没有助手回复；用户消息与既有历史均未受影响。
func respondGenerationError(c *gin.Context, err error) {
	var transportErr *zhipu.TransportError
	var remoteErr *zhipu.RemoteError

	switch {
	case errors.Is(err, repository.ErrConversationNotFound),
		errors.Is(err, service.ErrConversationForbidden):
		respondConversationError(c, err)
	case errors.Is(err, zhipu.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    http.StatusTooManyRequests,
			"message": "请求过于频繁或额度受限，请稍后再试",
		})
	case errors.Is(err, zhipu.ErrNoResult):
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    http.StatusBadGateway,
			"message": "生成成功但未返回结果",
		})
	case errors.Is(err, service.ErrTaskFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    http.StatusBadGateway,
			"message": "视频生成任务失败",
		})
	case errors.Is(err, service.ErrTaskTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"code":    http.StatusGatewayTimeout,
			"message": "视频生成超时，请稍后重试",
		})
	case errors.As(err, &transportErr), errors.As(err, &remoteErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    http.StatusBadGateway,
			"message": "调用生成服务失败",
		})
	default:
		log.Error("生成操作失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "操作失败",
		})
	}
}

// bindChatRequest 解析请求体并校验会话归属。
func (h *ChatHandler) bindChatRequest(c *gin.Context) (uint, string, bool) {
	conversationID, ok := parseConversationID(c)
	if !ok {
		return 0, "", false
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：内容不能为空",
		})
		return 0, "", false
	}

	user := currentUser(c)
	if _, err := h.conversationService.CheckOwnership(c.Request.Context(), user.ID, conversationID); err != nil {
		respondConversationError(c, err)
		return 0, "", false
	}
	return conversationID, req.Content, true
}

// SendText 处理一轮文本对话。
func (h *ChatHandler) SendText(c *gin.Context) {
	conversationID, content, ok := h.bindChatRequest(c)
	if !ok {
		return
	}

	msg, err := h.chatService.SendText(c.Request.Context(), conversationID, content)
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// GenerateImage 处理一次文生图请求。
func (h *ChatHandler) GenerateImage(c *gin.Context) {
	conversationID, content, ok := h.bindChatRequest(c)
	if !ok {
		return
	}

	msg, err := h.chatService.GenerateImage(c.Request.Context(), conversationID, content)
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// GenerateVideo 处理一次文生视频请求，阻塞至任务终态。
func (h *ChatHandler) GenerateVideo(c *gin.Context) {
	conversationID, content, ok := h.bindChatRequest(c)
	if !ok {
		return
	}

	msg, err := h.chatService.GenerateVideo(c.Request.Context(), conversationID, content)
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// GetArchivedMedia 为消息对应的已归档媒体生成限时下载链接。
func (h *ChatHandler) GetArchivedMedia(c *gin.Context) {
	conversationID, ok := parseConversationID(c)
	if !ok {
		return
	}
	messageID, err := strconv.ParseUint(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的消息 ID"})
		return
	}

	user := currentUser(c)
	if _, err := h.conversationService.CheckOwnership(c.Request.Context(), user.ID, conversationID); err != nil {
		respondConversationError(c, err)
		return
	}

	url, err := h.mediaService.PresignedURL(c.Request.Context(), conversationID, uint(messageID))
	if err != nil {
		log.Error("生成媒体下载链接失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成下载链接失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": url}})
}

// GetTaskStatus 查询一个进行中视频任务的瞬时状态。
func (h *ChatHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	status, err := h.taskStatusRepo.Get(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询任务状态失败"})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "任务不存在或已过期"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": status})
}

// Subscribe 建立一个 WebSocket 连接，订阅指定会话的消息列表变更。
// token 走路径参数（WebSocket 不便携带请求头），会话 ID 走查询参数。
func (h *ChatHandler) Subscribe(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token"})
		return
	}

	conversationID, err := strconv.ParseUint(c.Query("conversationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的会话 ID"})
		return
	}

	if _, err := h.conversationService.CheckOwnership(c.Request.Context(), claims.UserID, uint(conversationID)); err != nil {
		respondConversationError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	unsubscribe := h.messageHub.Subscribe(uint(conversationID), conn)
	defer unsubscribe()

	log.Infof("消息订阅已建立: user=%s, conversationID=%d", claims.Username, conversationID)

	// 读循环只用于感知客户端断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
