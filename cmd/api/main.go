package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/handler"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/infra"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ensureInitialAdmin 在数据库中创建配置里的初始管理员，已存在时什么也不做
func ensureInitialAdmin(cfg *config.Config, repo *repository.Repository) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = repo.CreateUser(&domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(hash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_key" {
		return nil
	}
	return err
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库、redis 和 RabbitMQ
	 **********************************************/
	dbpool, err := infra.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接数据库", "error", err)
		return
	}
	defer dbpool.Close()

	rdb, err := infra.OpenRedis(cfg)
	if err != nil {
		logger.Error("无法连接 redis", "error", err)
		return
	}
	defer rdb.Close()

	broker, err := infra.OpenBroker(cfg, 0)
	if err != nil {
		logger.Error("无法连接消息队列", "error", err)
		return
	}
	defer broker.Close()

	repo := repository.NewRepository(cfg, dbpool)
	if err := ensureInitialAdmin(cfg, repo); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	progressStore := progress.NewStore(rdb, time.Duration(cfg.Scheduler.ProgressExpiration)*time.Second)
	h, err := handler.NewHandler(cfg, repo, broker.Publisher(cfg), progressStore)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	h.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		logger.Error("服务器异常退出", "error", err)
		return
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭服务器失败", "error", err)
		return
	}
	logger.Info("服务器已成功关闭")
}
