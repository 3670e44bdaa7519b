// Command agent-uri-resolverd runs the agent URI resolver daemon: a
// WebSocket registry where agents register their URIs and endpoints and
// look each other up by trust root and capability path.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentries/agent-uri-go/internal/config"
	"github.com/agentries/agent-uri-go/internal/server"
	"github.com/agentries/agent-uri-go/internal/storage"
	"github.com/agentries/agent-uri-go/pkg/dht"
)

func main() {
	// Load configuration (file path from AGENTURI_CONFIG_PATH env, or defaults)
	configPath := os.Getenv("AGENTURI_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("agent uri resolver starting",
		zap.String("addr", cfg.Server.Address))

	var store storage.Store = storage.NoopStore{}
	if cfg.Registry.SnapshotPath != "" {
		fileStore, err := storage.NewFileStore(cfg.Registry.SnapshotPath)
		if err != nil {
			logger.Fatal("failed to open snapshot store", zap.Error(err))
		}
		store = fileStore
	}

	srvConfig := &server.Config{
		ListenAddr:     cfg.Server.Address,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		MaxPayloadSize: cfg.Server.MaxPayloadSize,
		Registry:       dht.NewMemoryDHTWithCapacity(cfg.Registry.KeyCapacity),
		Store:          store,
		DefaultTTL:     cfg.Registry.DefaultTTL,
		SweepInterval:  cfg.Registry.SweepInterval,
	}

	srv := server.NewResolverServer(srvConfig, logger)

	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}

// buildLogger constructs the zap logger described by the logging config.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if strings.ToLower(cfg.Format) == "text" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	switch cfg.Output {
	case "", "stdout":
		zc.OutputPaths = []string{"stdout"}
	case "stderr":
		zc.OutputPaths = []string{"stderr"}
	default:
		zc.OutputPaths = []string{cfg.Output}
	}
	return zc.Build()
}
