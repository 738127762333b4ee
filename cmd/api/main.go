package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/handlers"
	"github.com/english-site/english-site/internal/middleware"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/internal/services"
	"github.com/english-site/english-site/internal/workers"
	"github.com/english-site/english-site/pkg/cache"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewLogger()
	logger.Info("Starting English Site API server...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// 自动迁移数据库表
	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// 初始化Redis缓存
	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	// 检查Redis连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// 初始化Kafka生产者
	userEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents)
	defer userEventsProducer.Close()

	siteEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SiteEvents)
	defer siteEventsProducer.Close()

	// 初始化Kafka消费者
	userEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents, "timeline-worker-group")
	defer userEventsConsumer.Close()

	siteEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SiteEvents, "timeline-worker-group")
	defer siteEventsConsumer.Close()

	// 初始化仓库
	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)
	progressRepo := repository.NewProgressRepository(db.DB)
	timelineRepo := repository.NewTimelineRepository(db.DB)

	// 初始化服务
	sessionService := services.NewSessionService(redisClient, &cfg.Session, logger)
	userService := services.NewUserService(userRepo, followRepo, messageRepo, likeRepo, progressRepo, timelineRepo, userEventsProducer, &cfg.Profile, logger)
	messageService := services.NewMessageService(messageRepo, likeRepo, siteEventsProducer, &cfg.Message, logger)
	progressService := services.NewProgressService(progressRepo, siteEventsProducer, logger)
	certificateService := services.NewCertificateService(&cfg.Certificate)
	feedService := services.NewFeedService(timelineRepo, redisClient, &cfg.Feed, logger)

	// 初始化工作处理器，用户事件和站点事件各一个消费循环
	siteEventsWorker := workers.NewTimelineWorker(timelineRepo, messageRepo, followRepo, feedService, &cfg.Feed, siteEventsConsumer, logger)
	userEventsWorker := workers.NewTimelineWorker(timelineRepo, messageRepo, followRepo, feedService, &cfg.Feed, userEventsConsumer, logger)

	// 启动工作处理器
	go func() {
		if err := siteEventsWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("Site events worker stopped with error")
		}
	}()

	go func() {
		if err := userEventsWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("User events worker stopped with error")
		}
	}()

	// 初始化处理器
	userHandler := handlers.NewUserHandler(userService, sessionService, messageService, feedService, progressService)
	messageHandler := handlers.NewMessageHandler(messageService)
	learningHandler := handlers.NewLearningHandler(progressService, certificateService, userService)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NoCache())
	router.Use(middleware.SessionAuth(sessionService, cfg.Session.CookieName))

	// 添加CORS中间件
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	// 公开路由，登录与否都可访问
	router.GET("/", userHandler.Home)
	router.POST("/signup", userHandler.Signup)
	router.POST("/login", userHandler.Login)
	router.POST("/logout", userHandler.Logout)
	router.GET("/users", userHandler.ListUsers)
	router.GET("/users/:id", userHandler.GetProfile)
	router.GET("/users/:id/messages", messageHandler.GetUserMessages)
	router.GET("/messages/:id", messageHandler.GetMessage)

	// 学习模块
	router.GET("/video", learningHandler.GetVideo)
	router.GET("/grammar-book", learningHandler.GetGrammarBook)
	router.GET("/story-book", learningHandler.GetStoryBook)
	router.GET("/quiz", learningHandler.GetQuiz)
	router.POST("/submit-quiz", learningHandler.SubmitQuiz)
	router.GET("/get-certificate", learningHandler.GetCertificate)

	// 需要认证的路由
	protected := router.Group("")
	protected.Use(middleware.RequireAuth())
	{
		protected.GET("/users/:id/following", userHandler.GetFollowing)
		protected.GET("/users/:id/followers", userHandler.GetFollowers)
		protected.GET("/users/:id/likes", userHandler.GetLikes)
		protected.POST("/users/follow/:id", userHandler.Follow)
		protected.POST("/users/stop-following/:id", userHandler.Unfollow)
		protected.PUT("/users/profile", userHandler.UpdateProfile)
		protected.POST("/users/delete", userHandler.DeleteAccount)

		protected.POST("/messages", messageHandler.CreateMessage)
		protected.POST("/messages/:id/delete", messageHandler.DeleteMessage)
		protected.POST("/messages/:id/like", messageHandler.ToggleLike)

		protected.POST("/grammar-book-completed", learningHandler.GrammarBookCompleted)
		protected.POST("/story-book-completed", learningHandler.StoryBookCompleted)
		protected.POST("/video-completed", learningHandler.VideoCompleted)
	}

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if err := siteEventsWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop site events worker")
	}

	if err := userEventsWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop user events worker")
	}

	logger.Info("Server exited")
}

func init() {
	// 创建必要的目录
	dirs := []string{"logs", "configs"}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Failed to create directory %s: %v", dir, err)
		}
	}

	// 创建默认配置文件（如果不存在）
	configPath := "configs/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	defaultConfig := `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s

database:
  host: "localhost"
  port: 5432
  user: "siteuser"
  password: "sitepass"
  dbname: "englishsite"
  sslmode: "disable"
  max_open_conns: 100
  max_idle_conns: 10

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 100
  min_idle_conns: 10

kafka:
  brokers:
    - "localhost:9092"
  topics:
    user_events: "user-events"
    site_events: "site-events"

session:
  ttl: 24h
  cookie_name: "session_token"

message:
  max_length: 140

profile:
  default_image_url: "/static/images/default-pic.png"
  default_header_image_url: "/static/images/default-hero.jpg"

certificate:
  secret: "your-secret-key-change-in-production"
  validity: 8760h
  issuer: "english-site"

feed:
  cache_ttl: 1h
  max_feed_size: 1000
  home_limit: 100
`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
