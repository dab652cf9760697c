package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"askcampus/internal/ai"
	"askcampus/internal/config"
	"askcampus/internal/logger"
	"askcampus/internal/metrics"
	"askcampus/internal/model"
	mysqlClient "askcampus/internal/platform/mysql"
	rabbitmqClient "askcampus/internal/platform/rabbitmq"
	redisClient "askcampus/internal/platform/redis"
	"askcampus/internal/repository"
	"askcampus/internal/vectorstore"
	"askcampus/internal/vectorstore/milvus"
	"askcampus/internal/worker"
)

type App struct {
	Config          *config.Config
	Logger          *zap.Logger
	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	Vectors         vectorstore.Store
	AnalyticsWorker *worker.AnalyticsPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logFormat := "console"
	if cfg.App.Env == "prod" {
		logFormat = "json"
	}
	log, err := logger.New("info", logFormat)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	metrics.Init()

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	err = mysqlDB.AutoMigrate(
		&model.User{},
		&model.KnowledgeBase{},
		&model.QACollection{},
		&model.QA{},
		&model.QAAnalytics{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	})
	vectors, err := milvus.NewStore(ctx, cfg.Milvus.Endpoint, embedder, cfg.Milvus.VectorDim, log)
	if err != nil {
		return nil, err
	}

	analyticsRepo := repository.NewQAAnalyticsRepository(mysqlDB)
	analyticsWorker := worker.NewAnalyticsPersistWorker(mqConn, analyticsRepo, cfg.RabbitMQ.AnalyticsPersistQueue, log)
	if err := analyticsWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start analytics worker failed: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          log,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		Vectors:         vectors,
		AnalyticsWorker: analyticsWorker,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AnalyticsWorker != nil {
		a.AnalyticsWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if closer, ok := a.Vectors.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
