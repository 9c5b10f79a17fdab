package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smallplates/internal/config"
	"github.com/smallplates/internal/logger"
)

// DB 是一个全局的数据库连接实例，由 Init 赋值。
var DB *gorm.DB

// Init 打开数据库连接并执行迁移（建表与计数触发器）。
func Init(cfg config.DatabaseConfig) error {
	gdb, err := Open(cfg)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Open connects to the configured driver without migrating.
// An empty sqlite DSN falls back to smallplates.db.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.WithComponent("gorm").Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.DatabaseDriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		gdb, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return gdb, nil
	case config.DatabaseDriverSQLite, "":
		path := strings.TrimSpace(cfg.DSN)
		if path == "" {
			path = "smallplates.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		gdb, err := gorm.Open(sqlite.Open(path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates every table and installs the
// recipes_received trigger.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&User{},
		&SystemSetting{},
		&Profile{},
		&Group{},
		&GroupMember{},
		&Guest{},
		&Recipe{},
		&GroupRecipe{},
		&Cookbook{},
		&CookbookRecipe{},
		&RecipeProductionStatus{},
		&RecipePrintReady{},
		&MidjourneyPrompt{},
		&PromptEvaluation{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return installRecipeCountTrigger(gdb)
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
