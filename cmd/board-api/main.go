package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/api"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/config"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/reorder"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/storage"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/subscription"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/taskapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging(cfg.Debug)

	profile, err := config.LoadProfile(cfg.Board.ProfilePath)
	if err != nil {
		log.Fatalf("board profile: %v", err)
	}
	order, err := profile.Order()
	if err != nil {
		log.Fatalf("board profile: %v", err)
	}

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

	if cfg.Redis.ConnectionString == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(config.RedisOptions(cfg.Redis.ConnectionString))
	defer rc.Close()
	cache := storage.NewCache(store, rc, cfg.Redis.BoardCacheTTL)
	deduper := api.NewRedisDeduper(rc, cfg.Redis.DeduperTTL)

	auth, err := newAuth(cfg.Auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	moves, err := api.NewMoveCounter(reg)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	events := api.NewEventSender(cache, logger, api.PoolOptions{
		Workers:        cfg.Enqueue.Workers,
		Buffer:         cfg.Enqueue.Buffer,
		Timeout:        cfg.Enqueue.Timeout,
		HandoffTimeout: cfg.Enqueue.HandoffTimeout,
	})
	svc := api.NewTaskService(cache, deduper, events, logger)

	newTaskAPI := func(userID string) reorder.TaskAPI {
		return api.LocalTaskAPI{Service: svc, UserID: userID}
	}
	if cfg.Board.TaskAPIURL != "" {
		remote := taskapi.New(cfg.Board.TaskAPIURL, cfg.Board.TaskAPIToken)
		newTaskAPI = func(string) reorder.TaskAPI { return remote }
	}
	sessions := api.NewSessions(newTaskAPI, api.SessionOptions{
		Order:          order,
		PersistTimeout: profile.PersistTimeout,
		SuccessMessage: profile.Messages.Success,
		FailureMessage: profile.Messages.Failure,
		TTL:            cfg.Board.SessionTTL,
		Moves:          moves,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx)
	go subscription.SubscribeUpdates(ctx, log.NewEntry(logger), rc, cfg.Redis.UpdatesChannel, sessions)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, taskapi.HeaderSession, api.HeaderIdempotencyKey},
	}))
	e.Use(api.GzipRequestMiddleware())
	api.UseMetrics(e, reg)
	api.Register(e, svc, sessions, auth, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	sessions.Wait()
	events.Close()
}

func newAuth(cfg config.AuthConfig) (*api.Auth, error) {
	opts := api.AuthOptions{KeyCacheTTL: cfg.JWKSCacheTTL}
	if cfg.TestMode {
		if cfg.TestSecret == "" {
			return nil, errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE is on")
		}
		opts.TestSecret = cfg.TestSecret
		return api.NewAuth(nil, "", "", opts), nil
	}
	if cfg.Audience == "" || cfg.Domain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.Audience, "https://"+cfg.Domain+"/", opts), nil
}
