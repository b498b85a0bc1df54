// Package config loads service settings from the environment and the
// optional board profile file.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every setting read from the environment. Services validate
// the parts they need.
type Config struct {
	Debug      bool   `env:"DEBUG" env-default:"false"`
	ListenAddr string `env:"LISTEN_ADDR" env-default:":8080"`

	Storage StorageConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Enqueue EnqueueConfig
	Board   BoardConfig
	Audit   AuditConfig
}

type StorageConfig struct {
	ConnectionString string `env:"STORAGE_CONNECTION_STRING"`
	TasksTable       string `env:"TASKS_TABLE" env-default:"tasks"`
	StatusesTable    string `env:"STATUSES_TABLE" env-default:"statuses"`
	PrioritiesTable  string `env:"PRIORITIES_TABLE" env-default:"priorities"`
	AuditTable       string `env:"AUDIT_TABLE" env-default:"audit"`
	TaskEventsQueue  string `env:"TASK_EVENTS_QUEUE" env-default:"task-events"`
}

type RedisConfig struct {
	ConnectionString string        `env:"REDIS_CONNECTION_STRING"`
	BoardCacheTTL    time.Duration `env:"BOARD_CACHE_TTL" env-default:"5m"`
	DeduperTTL       time.Duration `env:"DEDUPER_TTL" env-default:"24h"`
	UpdatesChannel   string        `env:"BOARD_UPDATES_CHANNEL" env-default:"board-updates"`
}

type AuthConfig struct {
	Audience     string        `env:"AUTH0_AUDIENCE"`
	Domain       string        `env:"AUTH0_DOMAIN"`
	TestMode     bool          `env:"AUTH0_TEST_MODE" env-default:"false"`
	TestSecret   string        `env:"TEST_JWT_SECRET"`
	JWKSCacheTTL time.Duration `env:"JWKS_CACHE_TTL" env-default:"15m"`
}

// EnqueueConfig sizes the worker pool that ships task events to the queue.
type EnqueueConfig struct {
	Workers        int           `env:"ENQUEUE_WORKERS" env-default:"32"`
	Buffer         int           `env:"ENQUEUE_BUFFER" env-default:"4096"`
	Timeout        time.Duration `env:"ENQUEUE_TIMEOUT" env-default:"60s"`
	HandoffTimeout time.Duration `env:"ENQUEUE_HANDOFF_TIMEOUT" env-default:"15ms"`
}

type BoardConfig struct {
	// TaskAPIURL points board sessions at a remote task API. Empty means
	// sessions talk to this process's storage directly.
	TaskAPIURL   string        `env:"TASK_API_URL"`
	TaskAPIToken string        `env:"TASK_API_TOKEN"`
	ProfilePath  string        `env:"BOARD_PROFILE"`
	SessionTTL   time.Duration `env:"BOARD_SESSION_TTL" env-default:"30m"`
}

// AuditConfig tunes the task event consumer.
type AuditConfig struct {
	Batch       int32         `env:"AUDIT_BATCH" env-default:"16"`
	Idle        time.Duration `env:"AUDIT_IDLE" env-default:"1s"`
	MaxDequeues int64         `env:"AUDIT_MAX_DEQUEUES" env-default:"5"`
}

// Load reads Config from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
