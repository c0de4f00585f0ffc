package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/config"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/handler"
	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/router"
	"github.com/habitlog/internal/service"
	"github.com/habitlog/internal/store"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "habitlog",
		Short:         "Daily habit tracker with reading and work logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand(), newUserCommand(), newStatsCommand(), newSeedCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// openDatabase 加载配置并初始化数据库。
func openDatabase() (config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return config.AppConfig{}, fmt.Errorf("initialize database: %w", err)
	}
	return cfg, nil
}

func appDefaults(cfg config.AppConfig) model.Defaults {
	defaults := model.DefaultConfig()
	if id := strings.TrimSpace(cfg.ReadingHabitID); id != "" {
		defaults.ReadingHabitID = id
	}
	return defaults
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := openDatabase()
	if err != nil {
		return err
	}

	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		return fmt.Errorf("ensure super root user: %w", err)
	}

	gin.SetMode(cfg.GinMode)

	registry := service.NewSessions(cfg.DataDir, store.NewGormDocuments(db.DB), appDefaults(cfg))
	defer registry.Close()

	api := handler.NewAPI(db.DB, registry, handler.Options{
		UploadDir:         cfg.UploadDir,
		UploadURL:         cfg.UploadURLPath,
		GenerationBaseURL: cfg.GenerationBaseURL,
		Generation: service.GenerationSettings{
			APIKey:       cfg.GenerationAPIKey,
			Model:        cfg.GenerationModel,
			ReviewPrompt: cfg.ReviewPrompt,
		},
	})

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret, cfg.UploadDir, cfg.UploadURLPath)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go registry.RunJanitor(ctx, janitorInterval, cfg.SessionIdleTTL)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("habitlog listening on %s (data dir %s)", cfg.ListenAddr, filepath.Clean(cfg.DataDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
