package database

import (
	"context"

	"chatbox-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// NewRedis 建立 Redis 客户端连接并验证连通性。
func NewRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("连接 Redis 失败", err)
	}

	log.Info("Redis 客户端连接成功")
	return rdb
}
