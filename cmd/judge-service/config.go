package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/mq"
	"ojcore/internal/common/storage"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/artifact"
	"ojcore/internal/judge/sandbox"
	"ojcore/internal/judge/sandbox/engine"
	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/runner"
	"ojcore/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultWorkerTimeout   = 5 * time.Minute
	defaultStatusTimeout   = time.Second
	defaultStatusTTL       = 24 * time.Hour
	defaultAttemptTTL      = 7 * 24 * time.Hour
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// WorkerConfig holds sandbox worker settings.
type WorkerConfig struct {
	PoolSize    int                  `yaml:"poolSize"`
	Timeout     time.Duration        `yaml:"timeout"`
	WorkRoot    string               `yaml:"workRoot"`
	KeepWorkDir bool                 `yaml:"keepWorkDir"`
	Wall        runner.WallPolicy    `yaml:"wall"`
	ExecRetry   dispatch.RetryPolicy `yaml:"execRetry"`
}

// StatusConfig holds judge status cache settings.
type StatusConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	AttemptTTL time.Duration `yaml:"attemptTTL"`
	LockTTL    time.Duration `yaml:"lockTTL"`
	LockWait   time.Duration `yaml:"lockWait"`
}

// LanguageConfig overrides the built-in language runtimes.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
	Profiles  []profile.TaskProfile  `yaml:"profiles"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server   ServerConfig        `yaml:"server"`
	Logger   logger.Config       `yaml:"logger"`
	Kafka    mq.KafkaSettings    `yaml:"kafka"`
	Dispatch dispatch.Config     `yaml:"dispatch"`
	Redis    cache.RedisConfig   `yaml:"redis"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
	Harness  artifact.Config     `yaml:"harness"`
	Worker   WorkerConfig        `yaml:"worker"`
	Status   StatusConfig        `yaml:"status"`
	Sandbox  engine.Config       `yaml:"sandbox"`
	Runner   runner.Config       `yaml:"runner"`
	Language LanguageConfig      `yaml:"language"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	cfg.Redis.ApplyDefaults()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = defaultWorkerTimeout
	}
	if cfg.Dispatch.Jobs.MaxInFlight <= 0 {
		cfg.Dispatch.Jobs.MaxInFlight = cfg.Worker.PoolSize
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if cfg.Status.AttemptTTL == 0 {
		cfg.Status.AttemptTTL = defaultAttemptTTL
	}
	if cfg.Harness.Bucket == "" {
		cfg.Harness.Bucket = cfg.MinIO.Bucket
	}
	return &cfg, nil
}

func (w WorkerConfig) toWorkerConfig() sandbox.WorkerConfig {
	return sandbox.WorkerConfig{
		WorkRoot:    w.WorkRoot,
		KeepWorkDir: w.KeepWorkDir,
		Wall:        w.Wall,
	}
}
