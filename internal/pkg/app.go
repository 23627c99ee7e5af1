package pkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/api"
	"mutuelle/internal/app/carrier"
	"mutuelle/internal/app/config"
	"mutuelle/internal/app/document"
	"mutuelle/internal/app/dsn"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
	"mutuelle/internal/app/storage"
)

type Application struct {
	Config *config.Config
	Router *gin.Engine
	Redis  *redis.Client
}

// NewApp подключается к Postgres, Redis и (если настроен) MinIO и собирает роутер
func NewApp(ctx context.Context, c *config.Config) (*Application, error) {
	repo, err := repository.New(dsn.FromEnv())
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	redisClient, err := redis.New(ctx, c.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	deps := api.Dependencies{
		Config:     c,
		Repository: repo,
		Redis:      redisClient,
		Carrier: carrier.New(carrier.Config{
			BaseURL:          c.Carrier.BaseURL,
			Username:         c.Carrier.Username,
			Password:         c.Carrier.Password,
			SimulationMode:   c.Carrier.SimulationMode,
			Timeout:          c.Carrier.Timeout,
			ProductCacheSize: c.Carrier.ProductCacheSize,
			ProductCacheTTL:  c.Carrier.ProductCacheTTL,
		}),
	}

	if c.MinIO.Enabled() {
		minioClient, err := storage.NewMinIOClient(ctx, c.MinIO.Endpoint, c.MinIO.AccessKey, c.MinIO.SecretKey, c.MinIO.Bucket, c.MinIO.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		deps.Documents = document.NewService(repo, minioClient)
		deps.Storage = minioClient
	} else {
		logrus.Warn("MinIO is not configured, documents are stored in the database")
		deps.Documents = document.NewService(repo, nil)
	}

	if deps.Carrier.Simulated() {
		logrus.Info("carrier API runs in simulation mode")
	}

	return &Application{
		Config: c,
		Router: api.NewRouter(deps),
		Redis:  redisClient,
	}, nil
}

// RunApp запускает HTTP сервер и останавливает его по SIGINT/SIGTERM
func (a *Application) RunApp() error {
	logrus.Info("Server start up")

	serverAddress := fmt.Sprintf("%s:%d", a.Config.ServiceHost, a.Config.ServicePort)
	srv := &http.Server{
		Addr:              serverAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on %s", serverAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	if err := a.Redis.Close(); err != nil {
		logrus.Warnf("redis close: %v", err)
	}
	logrus.Info("Server down")
	return nil
}
