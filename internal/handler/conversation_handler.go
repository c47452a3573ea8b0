package handler

import (
	"errors"
	"net/http"
	"strconv"

	"chatbox-go/internal/model"
	"chatbox-go/internal/repository"
	"chatbox-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与会话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func currentUser(c *gin.Context) *model.User {
	return c.MustGet("user").(*model.User)
}

func parseConversationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("conversationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的会话 ID",
		})
		return 0, false
	}
	return uint(id), true
}

// respondConversationError 把会话相关的存储层错误映射为 HTTP 响应。
func respondConversationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在"})
	case errors.Is(err, service.ErrConversationForbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "无权访问该会话"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "操作失败"})
	}
}

// List 返回当前用户的会话列表，最近更新的排在最前。
func (h *ConversationHandler) List(c *gin.Context) {
	user := currentUser(c)
	convs, err := h.service.List(c.Request.Context(), user.ID)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": convs})
}

// Create 为当前用户新建一个会话。
func (h *ConversationHandler) Create(c *gin.Context) {
	user := currentUser(c)
	conv, err := h.service.Create(c.Request.Context(), user.ID)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conv})
}

// Delete 删除当前用户的会话及其全部消息。
func (h *ConversationHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	conversationID, ok := parseConversationID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), user.ID, conversationID); err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "会话已删除"})
}

// ListMessages 返回会话内的全部消息，按时间升序。
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	user := currentUser(c)
	conversationID, ok := parseConversationID(c)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(c.Request.Context(), user.ID, conversationID)
	if err != nil {
		respondConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msgs})
}
