package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/credentials"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/session"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	creds := credentials.NewFileStore(cfg.UsersPath(),
		core.BootstrapCredentials(cfg.BootstrapAdminPassword, cfg.BootstrapSupervisorPassword), logger)
	registry := session.NewRegistry(cfg.SessionTTL)
	controller := session.NewController(creds, registry, logger)

	manager := cache.NewManager(logger)
	manager.Register(result.Categories)
	manager.Register(registry)
	manager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Sessions:       controller,
		Budget:         services.NewBudgetService(result.Transactions, result.Categories, logger),
		Users:          services.NewUserService(creds, logger),
		Reports:        services.NewReportsService(result.Transactions, logger),
		Ready:          result.Ping,
		LoginRateLimit: cfg.LoginRateLimit,
		SessionTTL:     cfg.SessionTTL,
		Logger:         logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		manager.Stop()
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"users_file", cfg.UsersPath())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
