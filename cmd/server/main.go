// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbox-go/internal/config"
	"chatbox-go/internal/handler"
	"chatbox-go/internal/hub"
	"chatbox-go/internal/middleware"
	"chatbox-go/internal/model"
	"chatbox-go/internal/pipeline"
	"chatbox-go/internal/repository"
	"chatbox-go/internal/service"
	"chatbox-go/pkg/database"
	"chatbox-go/pkg/es"
	"chatbox-go/pkg/kafka"
	"chatbox-go/pkg/log"
	"chatbox-go/pkg/storage"
	"chatbox-go/pkg/token"
	"chatbox-go/pkg/zhipu"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施：MySQL、Redis、MinIO、Elasticsearch、Kafka
	db := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err := db.AutoMigrate(&model.User{}, &model.Conversation{}, &model.Message{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	rdb := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	minioClient := storage.NewMinIO(cfg.MinIO)
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("es 初始化失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	taskStatusRepo := repository.NewTaskStatusRepository(rdb)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	zhipuClient := zhipu.NewClient(cfg.Zhipu)
	poller := service.NewTaskPoller(
		zhipuClient,
		taskStatusRepo,
		time.Duration(cfg.Zhipu.PollIntervalSeconds)*time.Second,
		cfg.Zhipu.MaxPollAttempts,
	)
	messageHub := hub.New()
	userService := service.NewUserService(userRepo, jwtManager, rdb)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)
	searchService := service.NewSearchService(esClient, cfg.Elasticsearch)
	mediaService := service.NewMediaService(minioClient, cfg.MinIO)
	chatService := service.NewChatService(
		conversationRepo,
		messageRepo,
		zhipuClient,
		poller,
		cfg.Zhipu.HistoryLimit,
		messageHub,
		service.NewKafkaIndexer(producer),
		mediaService,
	)

	// 6. 初始化消息索引管道并启动后台 Kafka 消费者
	processor := pipeline.NewIndexProcessor(esClient, cfg.Elasticsearch.IndexName)
	go kafka.StartConsumer(cfg.Kafka, rdb, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	chatHandler := handler.NewChatHandler(chatService, conversationService, mediaService, taskStatusRepo, messageHub, jwtManager)
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)
			users.POST("/resetPassword", handler.NewUserHandler(userService).ResetPassword)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Conversation 路由组，需要认证
		conversations := apiV1.Group("/conversations")
		conversations.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			conversations.GET("", handler.NewConversationHandler(conversationService).List)
			conversations.POST("", handler.NewConversationHandler(conversationService).Create)
			conversations.DELETE("/:conversationId", handler.NewConversationHandler(conversationService).Delete)
			conversations.GET("/:conversationId/messages", handler.NewConversationHandler(conversationService).ListMessages)

			// 三个生成操作：文本对话、文生图、文生视频
			conversations.POST("/:conversationId/chat", chatHandler.SendText)
			conversations.POST("/:conversationId/image", chatHandler.GenerateImage)
			conversations.POST("/:conversationId/video", chatHandler.GenerateVideo)
			conversations.GET("/:conversationId/messages/:messageId/media", chatHandler.GetArchivedMedia)
		}

		// 视频任务状态查询，需要认证
		tasks := apiV1.Group("/tasks")
		tasks.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			tasks.GET("/:taskId", chatHandler.GetTaskStatus)
		}

		// Search 路由组
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.GET("/messages", handler.NewSearchHandler(searchService).SearchMessages)
		}
	}

	// 消息订阅 (WebSocket)，token 走路径参数
	r.GET("/ws/:token", chatHandler.Subscribe)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个阻塞循环，进程退出时自然结束，
	// 生产者由上面的 defer 关闭。
	log.Info("服务已优雅关闭")
}
