package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"device-sync/internal/config"
	"device-sync/internal/handler"
	"device-sync/internal/logging"
	"device-sync/internal/repository"
	"device-sync/internal/service"
	"device-sync/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deviceRepo, err := openDeviceRepository(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open device store", zap.Error(err))
	}

	wsManager := websocket.NewManager(
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		logger,
	)
	go wsManager.Run(ctx)

	deviceService := service.NewDeviceService(deviceRepo, wsManager, logger)

	router := handler.NewRouter(
		handler.NewDeviceHandler(deviceService, logger),
		handler.NewWebSocketHandler(
			wsManager,
			cfg.WebSocket.ReadBufferSize,
			cfg.WebSocket.WriteBufferSize,
			cfg.WebSocket.MaxMessageSize,
			logger,
		),
		handler.CORSOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		},
		logger,
	)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting device hub",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("store", cfg.Database.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down device hub")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("device hub stopped gracefully")
}

func openDeviceRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.DeviceRepository, error) {
	if cfg.Store == "memory" {
		return repository.NewMemoryDeviceRepository(), nil
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Name); err != nil {
			return nil, fmt.Errorf("create database: %w", err)
		}
		logger.Info("created database", zap.String("name", cfg.Name))
	}

	logger.Info("connected to CouchDB", zap.String("host", cfg.Host), zap.String("port", cfg.Port))
	return repository.NewDeviceRepository(client, cfg.Name), nil
}
