package handler

import (
	"net/http"
	"strconv"

	"chatbox-go/internal/service"
	"chatbox-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 处理历史消息全文检索请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchMessages 在当前用户的历史消息中做全文检索。
func (h *SearchHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "搜索关键词不能为空",
		})
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	user := currentUser(c)
	docs, err := h.searchService.SearchMessages(c.Request.Context(), user.ID, query, size)
	if err != nil {
		log.Error("搜索消息失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "搜索失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}
