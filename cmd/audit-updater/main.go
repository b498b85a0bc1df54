package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/audit"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/config"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/storage"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging(cfg.Debug)
	logger.Info("audit updater starting")

	if cfg.Storage.ConnectionString == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(cfg.Storage.ConnectionString, storage.Tables{
		Tasks:      cfg.Storage.TasksTable,
		Statuses:   cfg.Storage.StatusesTable,
		Priorities: cfg.Storage.PrioritiesTable,
		Audit:      cfg.Storage.AuditTable,
		Events:     cfg.Storage.TaskEventsQueue,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var publish audit.PublishFunc
	if cfg.Redis.ConnectionString != "" {
		rc := redis.NewClient(config.RedisOptions(cfg.Redis.ConnectionString))
		defer rc.Close()
		publish = func(ctx context.Context, update domain.BoardUpdate) error {
			return subscription.Publish(ctx, rc, cfg.Redis.UpdatesChannel, update)
		}
	} else {
		logger.Warn("no redis configured; board sessions will not be told about changes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := audit.NewProcessor(store, publish, audit.Options{
		Batch:       cfg.Audit.Batch,
		Idle:        cfg.Audit.Idle,
		MaxDequeues: cfg.Audit.MaxDequeues,
		Logger:      log.NewEntry(logger),
	})
	p.Run(ctx)
	logger.Info("audit updater stopped")
}
