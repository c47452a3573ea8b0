package model

import "time"

// PlaceholderTitle 是新建会话的占位标题。
// 首条有效用户输入会把它覆盖为自动生成的标题，且只覆盖一次。
const PlaceholderTitle = "新会话"

// Conversation 代表一个属于单个用户的会话容器。
// UpdatedAt 始终反映最近一次成功写入该会话的消息时间戳，
// 由业务层显式维护，因此关闭了 GORM 的自动时间戳。
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"size:64;not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// HasPlaceholderTitle 判断标题是否仍处于可被自动覆盖的占位状态。
func (c *Conversation) HasPlaceholderTitle() bool {
	return c.Title == "" || c.Title == PlaceholderTitle
}
