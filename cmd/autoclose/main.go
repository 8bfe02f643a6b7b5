package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/repository"
	"github.com/noah-isme/facility-workorder-api/internal/service"
	"github.com/noah-isme/facility-workorder-api/pkg/config"
	"github.com/noah-isme/facility-workorder-api/pkg/database"
	"github.com/noah-isme/facility-workorder-api/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	workOrderRepo := repository.NewWorkOrderRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	permissions := service.NewPermissionResolver(repository.NewPermissionRepository(db), logr,
		service.WithPermissionMetrics(metrics),
	)
	actions := service.NewWorkOrderActionService(workOrderRepo, teamRepo,
		service.NewActorContextLoader(permissions, teamRepo, logr), validator.New(), logr,
		service.WithActionAudit(repository.NewAuditRepository(db)),
		service.WithActionMetrics(metrics),
	)

	sweep := func() {
		started := time.Now()
		cutoff := started.UTC().Add(-cfg.WorkOrders.AutoCloseAfter)
		closed, err := actions.CloseExpired(ctx, cutoff, cfg.WorkOrders.AutoCloseBatch)
		if err != nil {
			logr.Error("auto close sweep failed", zap.Error(err))
			return
		}
		logr.Info("auto close sweep finished",
			zap.Int("closed", closed),
			zap.Time("cutoff", cutoff),
			zap.Duration("duration", time.Since(started)),
		)
	}

	if *once {
		sweep()
		return
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(cfg.WorkOrders.AutoCloseSchedule, sweep); err != nil {
		logr.Fatal("invalid auto close schedule", zap.String("schedule", cfg.WorkOrders.AutoCloseSchedule), zap.Error(err))
	}
	scheduler.Start()
	logr.Info("auto close scheduler started",
		zap.String("schedule", cfg.WorkOrders.AutoCloseSchedule),
		zap.Duration("after", cfg.WorkOrders.AutoCloseAfter),
	)

	<-ctx.Done()
	logr.Info("stopping auto close scheduler")
	<-scheduler.Stop().Done()
}
