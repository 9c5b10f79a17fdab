package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/smallplates/internal/config"
	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/handler"
	"github.com/smallplates/internal/logger"
	"github.com/smallplates/internal/middleware"
	"github.com/smallplates/internal/router"
	"github.com/smallplates/internal/service"
	"github.com/smallplates/internal/storage"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Logger)
	log := logger.WithComponent("server")
	gin.SetMode(cfg.Server.GinMode)

	// 初始化数据库
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	if err := db.EnsureUser(gdb, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	bucket, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	placement, _ := service.ParsePlacement(cfg.Submission.Placement)
	queue := service.NewTaskQueue(cfg.Queue.Workers, cfg.Queue.Size, 0, nil)

	var limiter *middleware.RateLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, rate limiting fails open", "addr", cfg.Redis.Addr, "error", err)
		}
		limiter = middleware.NewRateLimiter(client, cfg.RateLimit.SubmissionsPerMinute, time.Minute)
	}

	api := handler.NewAPI(gdb, handler.Options{
		Bucket:    bucket,
		Agent:     service.NewPromptAgentClient(cfg.Agent.BaseURL, cfg.Agent.Timeout),
		Tasks:     queue,
		Placement: placement,
	})

	routerOpts := router.Options{
		SessionSecret:  cfg.Server.SessionSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
	}
	if cfg.Storage.Backend == config.StorageBackendLocal && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		routerOpts.UploadDir = cfg.Storage.LocalDir
		routerOpts.UploadURL = cfg.Storage.PublicBaseURL
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router.SetupRouter(api, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.ListenAddr, "placement", placement.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
	case <-sigCtx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		log.Warn("background tasks abandoned", "error", err)
	}
	return nil
}
