package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	appsvc "askcampus/internal/app"
	"askcampus/internal/bootstrap"
	"askcampus/internal/cache"
	"askcampus/internal/metrics"
	"askcampus/internal/pkg/slugutil"
	"askcampus/internal/platform/rabbitmq"
	"askcampus/internal/repository"
	"askcampus/internal/transport/http/handler"
	"askcampus/internal/transport/http/middleware"
)

func NewRouter(ctx context.Context, app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", metrics.Handler())

	userRepo := repository.NewUserRepository(app.MySQL)
	kbRepo := repository.NewKnowledgeBaseRepository(app.MySQL)
	collectionRepo := repository.NewQACollectionRepository(app.MySQL)
	qaRepo := repository.NewQARepository(app.MySQL)
	analyticsRepo := repository.NewQAAnalyticsRepository(app.MySQL)

	slugs := slugutil.New(app.Config.Security.SlugSalt)
	kbCache := cache.NewKBConfigCache(app.Redis, time.Duration(app.Config.Redis.KBConfigTTLSeconds)*time.Second)
	publisher := rabbitmq.NewAnalyticsPublisher(app.MQConn, app.Config.RabbitMQ.AnalyticsPersistQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
		app.Logger,
	)
	if err := authService.EnsureBootstrapAdmin(ctx, app.Config.Auth.BootstrapAdmin, app.Config.Auth.BootstrapPassword); err != nil {
		return nil, err
	}

	reconciler := appsvc.NewReconciler(qaRepo, app.Vectors, app.Logger)
	kbService := appsvc.NewKnowledgeBaseService(kbRepo, userRepo, slugs, kbCache, app.Logger)
	collectionService := appsvc.NewCollectionService(collectionRepo, userRepo, slugs, reconciler, app.Logger)
	qaService := appsvc.NewQAService(qaRepo, collectionRepo, analyticsRepo, app.Vectors, reconciler, app.Logger)
	queryService := appsvc.NewQueryService(
		collectionRepo,
		qaRepo,
		app.Vectors,
		publisher,
		app.Config.Query.TopK,
		float32(app.Config.Query.ScoreThreshold),
		app.Logger,
	)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(authService)
	kbHandler := handler.NewKnowledgeBaseHandler(kbService)
	collectionHandler := handler.NewCollectionHandler(collectionService, qaService)
	queryHandler := handler.NewQueryHandler(queryService)

	v1 := router.Group("/api/v1")

	// Public surface for the chat front end.
	v1.GET("/public/kb/:slug", kbHandler.PublicConfig)
	v1.POST("/query", queryHandler.Query)

	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	authed.GET("/users", userHandler.List)
	authed.POST("/users", userHandler.Create)
	authed.PUT("/users/:id", userHandler.Update)

	authed.GET("/kb", kbHandler.List)
	authed.POST("/kb", kbHandler.Create)
	authed.POST("/kb/sync", kbHandler.Sync)
	authed.GET("/kb/:id", kbHandler.Get)
	authed.PUT("/kb/:id", kbHandler.Update)
	authed.DELETE("/kb/:id", kbHandler.Delete)
	authed.POST("/kb/:id/reset-slug", kbHandler.ResetSlug)
	authed.PUT("/kb/:id/managers", kbHandler.ReplaceManagers)

	authed.GET("/collections", collectionHandler.List)
	authed.POST("/collections", collectionHandler.Create)
	authed.GET("/collections/:id", collectionHandler.Get)
	authed.PUT("/collections/:id", collectionHandler.Update)
	authed.DELETE("/collections/:id", collectionHandler.Delete)
	authed.PUT("/collections/:id/managers", collectionHandler.ReplaceManagers)
	authed.GET("/collections/:id/qas", collectionHandler.ListQAs)
	authed.POST("/collections/:id/qas", collectionHandler.CreateQA)
	authed.POST("/collections/:id/import", collectionHandler.ImportQAs)
	authed.POST("/collections/:id/reconcile", collectionHandler.Reconcile)
	authed.GET("/collections/:id/analytics", collectionHandler.Analytics)

	authed.DELETE("/qas/:id", collectionHandler.DeleteQA)

	return router, nil
}
