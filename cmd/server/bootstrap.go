package main

import (
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/handlers"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/services"
	"github.com/tokengate/tokengate/internal/utils"
	"github.com/tokengate/tokengate/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the
// application.
type appServices struct {
	store            *services.TokenStore
	issuer           *services.IssuerService
	policy           *services.PolicyService
	summary          *services.SummaryService
	accessLog        *services.AccessLogService
	sweep            *services.SweepService
	taskQueue        services.TaskQueue
	worker           *services.Worker
	tokenHandler     *handlers.UserTokenHandler
	accessHandler    *handlers.AccessHandler
	accessLogHandler *handlers.AccessLogHandler
}

// bootstrap initializes all application dependencies: database, secret
// cipher, services, queue and schedulers.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	cipher, err := utils.NewSecretCipher(cfg.Security.MasterKey)
	if err != nil {
		logger.Fatalf("Failed to initialize secret cipher: %v", err)
	}

	db := models.GetDB()
	store := services.NewTokenStore(db, cipher)
	issuer := services.NewIssuerService(store)
	summary := services.NewSummaryService(db)

	// Access logs flow through the task queue: Redis-backed when
	// enabled, inline writes otherwise.
	taskQueue := services.InitTaskQueue(cfg)
	accessLog := services.NewAccessLogService(db, taskQueue)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(accessLog.Persist)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(accessLog.Persist)
			worker.Start()
		}
	}

	policy := services.NewPolicyService(store, accessLog)

	sweep := services.NewSweepService(db, accessLog, &cfg.Security)
	sweep.Start()

	return &appServices{
		store:            store,
		issuer:           issuer,
		policy:           policy,
		summary:          summary,
		accessLog:        accessLog,
		sweep:            sweep,
		taskQueue:        taskQueue,
		worker:           worker,
		tokenHandler:     handlers.NewUserTokenHandler(store, issuer, summary),
		accessHandler:    handlers.NewAccessHandler(policy),
		accessLogHandler: handlers.NewAccessLogHandler(accessLog),
	}
}

// shutdown gracefully stops background services.
func (s *appServices) shutdown() {
	s.sweep.Stop()
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("Background services stopped")
}
