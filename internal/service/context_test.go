package service

import (
	"fmt"
	"testing"

	"chatbox-go/internal/model"
	"chatbox-go/pkg/zhipu"

	"github.com/stretchr/testify/assert"
)

func TestAssembleTurns(t *testing.T) {
	messages := []model.Message{
		{IsUser: true, Text: "你好"},
		{IsUser: false, Text: "你好！有什么可以帮你？"},
		{IsUser: true, Text: "[图片请求] 一只猫"},
		{IsUser: false, Text: "图片已生成：https://example.com/cat.png"},
	}

	turns := assembleTurns(messages)
	assert.Equal(t, []zhipu.Message{
		{Role: "user", Content: "你好"},
		{Role: "assistant", Content: "你好！有什么可以帮你？"},
		// 媒体消息的前缀文本原样保留
		{Role: "user", Content: "[图片请求] 一只猫"},
		{Role: "assistant", Content: "图片已生成：https://example.com/cat.png"},
	}, turns)
}

func TestCapTurns(t *testing.T) {
	makeTurns := func(n int) []zhipu.Message {
		turns := make([]zhipu.Message, n)
		for i := range turns {
			turns[i] = zhipu.Message{Role: "user", Content: fmt.Sprintf("消息%d", i)}
		}
		return turns
	}

	tests := []struct {
		name      string
		total     int
		limit     int
		wantLen   int
		wantFirst string
	}{
		{name: "不足上限时全部保留", total: 5, limit: 12, wantLen: 5, wantFirst: "消息0"},
		{name: "恰好等于上限", total: 12, limit: 12, wantLen: 12, wantFirst: "消息0"},
		{name: "超过上限只留最近的", total: 20, limit: 12, wantLen: 12, wantFirst: "消息8"},
		{name: "limit为0表示不截取", total: 20, limit: 0, wantLen: 20, wantFirst: "消息0"},
		{name: "limit为负表示不截取", total: 3, limit: -1, wantLen: 3, wantFirst: "消息0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capTurns(makeTurns(tt.total), tt.limit)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantFirst, got[0].Content)
			// 截取后最后一条永远是最新的消息
			assert.Equal(t, fmt.Sprintf("消息%d", tt.total-1), got[len(got)-1].Content)
		})
	}
}
