package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Jarvis/sandbox/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen host")
	level := flag.String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", cfg.Logging.File, "Also write logs to this file")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (console logs)")
	lazy := flag.Bool("lazy", !cfg.Driver.EagerStart, "Start the browser on the first navigation")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Logging.Level = *level
	cfg.Logging.Development = *dev
	cfg.Logging.File = *logFile
	cfg.Driver.EagerStart = !*lazy

	logger := logging.NewOrDefault(cfg.Logging)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		stop()
		_ = srv.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
