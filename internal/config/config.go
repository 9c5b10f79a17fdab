package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Admin      AdminConfig      `mapstructure:"admin"`
}

type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	GinMode        string   `mapstructure:"gin_mode"`
	SessionSecret  string   `mapstructure:"session_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// StorageConfig selects the object store backend. LocalDir and PublicBaseURL
// are only read by the local backend; Bucket and CredentialsFile by gcs.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"`
	LocalDir        string `mapstructure:"local_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AgentConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	Size    int `mapstructure:"size"`
}

// SubmissionConfig.Placement is staged_first or record_first.
type SubmissionConfig struct {
	Placement string `mapstructure:"placement"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	SubmissionsPerMinute int `mapstructure:"submissions_per_minute"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

// Load 从配置文件与环境变量读取应用配置，并为缺失项提供安全的默认值。
// 环境变量使用 SMALLPLATES_ 前缀，例如 SMALLPLATES_DATABASE_DSN。
func Load() (AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")

	v.SetEnvPrefix("SMALLPLATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	normalize(&cfg)
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.session_secret", "smallplates-dev-secret")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.dsn", "smallplates.db")

	v.SetDefault("storage.backend", StorageBackendLocal)
	v.SetDefault("storage.local_dir", "data/uploads")
	v.SetDefault("storage.public_base_url", "/uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.credentials_file", "")

	v.SetDefault("agent.base_url", "")
	v.SetDefault("agent.timeout", 60*time.Second)

	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.size", 64)

	v.SetDefault("submission.placement", "staged_first")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.submissions_per_minute", 20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
}

func normalize(cfg *AppConfig) {
	cfg.Server.ListenAddr = strings.TrimSpace(cfg.Server.ListenAddr)
	cfg.Server.GinMode = strings.TrimSpace(cfg.Server.GinMode)
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Storage.PublicBaseURL), "/")
	cfg.Agent.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Agent.BaseURL), "/")
	cfg.Submission.Placement = strings.ToLower(strings.TrimSpace(cfg.Submission.Placement))
	cfg.Admin.Username = strings.TrimSpace(cfg.Admin.Username)
	cfg.Admin.Password = strings.TrimSpace(cfg.Admin.Password)

	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 1
	}
	if cfg.Queue.Size <= 0 {
		cfg.Queue.Size = 1
	}
}

func (c AppConfig) validate() error {
	switch c.Database.Driver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Submission.Placement {
	case "staged_first", "record_first":
	default:
		return fmt.Errorf("unsupported submission placement %q", c.Submission.Placement)
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	return nil
}
