package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/repository"
	"github.com/english-site/english-site/internal/services"
	"github.com/english-site/english-site/internal/workers"
	"github.com/english-site/english-site/pkg/cache"
	"github.com/english-site/english-site/pkg/logger"
	"github.com/english-site/english-site/pkg/queue"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewLogger()
	logger.Info("Starting English Site Worker...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

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

	// 初始化Kafka消费者
	userEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents, "timeline-worker-group")
	defer userEventsConsumer.Close()

	siteEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SiteEvents, "timeline-worker-group")
	defer siteEventsConsumer.Close()

	// 初始化仓库
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	timelineRepo := repository.NewTimelineRepository(db.DB)

	// 初始化服务
	feedService := services.NewFeedService(timelineRepo, redisClient, &cfg.Feed, logger)

	// 初始化工作处理器
	siteEventsWorker := workers.NewTimelineWorker(timelineRepo, messageRepo, followRepo, feedService, &cfg.Feed, siteEventsConsumer, logger)
	userEventsWorker := workers.NewTimelineWorker(timelineRepo, messageRepo, followRepo, feedService, &cfg.Feed, userEventsConsumer, logger)

	// 启动工作处理器
	logger.Info("Starting timeline workers...")
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

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")

	// 优雅关闭
	_, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := siteEventsWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop site events worker")
	}

	if err := userEventsWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop user events worker")
	}

	logger.Info("Worker exited")
}
