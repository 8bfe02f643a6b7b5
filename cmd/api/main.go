package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/facility-workorder-api/api/swagger"
	"github.com/noah-isme/facility-workorder-api/internal/handler"
	"github.com/noah-isme/facility-workorder-api/internal/middleware"
	"github.com/noah-isme/facility-workorder-api/internal/repository"
	"github.com/noah-isme/facility-workorder-api/internal/service"
	"github.com/noah-isme/facility-workorder-api/pkg/cache"
	"github.com/noah-isme/facility-workorder-api/pkg/config"
	"github.com/noah-isme/facility-workorder-api/pkg/database"
	"github.com/noah-isme/facility-workorder-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/facility-workorder-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/facility-workorder-api/pkg/middleware/requestid"
)

// @title Facility Work-Order API
// @version 1.0.0
// @description Hospital facility work-order lifecycle and permission service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	workOrderRepo := repository.NewWorkOrderRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	notificationRepo := repository.NewNotificationRepository(redisClient, cfg.Notifications.ChannelPrefix)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Permissions.CacheTTL, logr, cfg.Permissions.CacheEnabled)
	permissions := service.NewPermissionResolver(permissionRepo, logr,
		service.WithPermissionCache(cacheSvc, cfg.Permissions.CacheTTL),
		service.WithPermissionMetrics(metrics),
	)
	loader := service.NewActorContextLoader(permissions, teamRepo, logr)

	notifications := service.NewNotificationService(notificationRepo, service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled,
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, metrics, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	actions := service.NewWorkOrderActionService(workOrderRepo, teamRepo, loader, validate, logr,
		service.WithActionAudit(auditRepo),
		service.WithActionNotifier(notifications),
		service.WithActionMetrics(metrics),
	)
	orders := service.NewWorkOrderService(workOrderRepo, teamRepo, loader, validate, logr,
		service.WithWorkOrderAudit(auditRepo),
		service.WithWorkOrderNotifier(notifications),
		service.WithCodePrefix(cfg.WorkOrders.CodePrefix),
	)
	tokens := service.NewTokenVerifier(service.TokenVerifierConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		WorkOrders:  handler.NewWorkOrderHandler(orders, actions),
		Permissions: handler.NewPermissionHandler(permissions, logr),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}),
	}, handler.Guards{
		Tokens:      tokens,
		Permissions: permissions,
		Audit:       auditRepo,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}
