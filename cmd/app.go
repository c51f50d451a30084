package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"factoryops/api"
	intentapp "factoryops/application/intent"
	"factoryops/config"
	"factoryops/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// App 应用程序结构体
type App struct {
	config  *config.Config
	router  *api.Router
	server  *http.Server
	engine  *intentapp.Engine
	sweeper *intentapp.TokenSweeper // nil when disabled
	db      *gorm.DB
}

// Run 运行应用程序，ctx 取消后优雅关闭
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting",
			zap.String("addr", a.server.Addr),
			zap.String("health", "/api/v1/health"),
			zap.String("intents", "/api/v1/intents"))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.sweeper != nil {
		g.Go(func() error {
			if err := a.sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.close()
	logger.Info("Server stopped")
	return err
}

func (a *App) close() {
	closeDB(a.db)
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

// GetServer 获取 gin 引擎（用于测试）
func (a *App) GetServer() *gin.Engine {
	return a.router.GetEngine()
}
