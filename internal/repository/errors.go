// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import "errors"

// 存储层前置条件错误，供业务层用 errors.Is 区分。
var (
	// ErrDuplicateUser 表示注册时用户名已存在。
	ErrDuplicateUser = errors.New("用户已存在")
	// ErrUserNotFound 表示目标用户不存在。
	ErrUserNotFound = errors.New("用户不存在")
	// ErrConversationNotFound 表示目标会话不存在。
	ErrConversationNotFound = errors.New("会话不存在")
)
