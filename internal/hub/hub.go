// Package hub 维护会话维度的 WebSocket 订阅，向前端推送消息列表变更。
package hub

import (
	"encoding/json"
	"sync"

	"chatbox-go/internal/model"
	"chatbox-go/pkg/log"

	"github.com/gorilla/websocket"
)

// subscriber 是一个已建立的 WebSocket 订阅连接。
// gorilla 的连接不允许并发写，用每连接互斥锁串行化。
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 按会话 ID 维护订阅集合。
// 业务层在每次消息落库后调用 MessageAppended，推送给该会话的全部订阅者。
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint]map[*subscriber]struct{}
}

// New 创建一个空的 Hub。
func New() *Hub {
	return &Hub{subscribers: make(map[uint]map[*subscriber]struct{})}
}

// Subscribe 注册一个会话订阅，返回取消函数。
// 连接的生命周期由调用方（handler）负责。
func (h *Hub) Subscribe(conversationID uint, conn *websocket.Conn) func() {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	set, ok := h.subscribers[conversationID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[conversationID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if set, ok := h.subscribers[conversationID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subscribers, conversationID)
			}
		}
		h.mu.Unlock()
	}
}

// MessageAppended 实现 service.MessageNotifier，
// 把新消息推送给该会话的所有订阅者；推送失败只记日志。
func (h *Hub) MessageAppended(conversationID uint, msg *model.Message) {
	payload := map[string]interface{}{
		"type":    "message",
		"message": msg,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("序列化推送消息失败: %v", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers[conversationID]))
	for sub := range h.subscribers[conversationID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(data); err != nil {
			log.Warnf("推送消息到订阅者失败: conversationID=%d, error: %v", conversationID, err)
		}
	}
}
