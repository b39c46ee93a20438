package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-integration-client/internal/app"
	"github.com/samvad-hq/samvad-integration-client/internal/config"
	"github.com/samvad-hq/samvad-integration-client/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LoginCredentials == "" {
		return fmt.Errorf("login_credentials is not configured")
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err)
		return err
	}
	defer runner.Close()

	result, err := runner.Login(ctx)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"authenticated": result.Authenticated,
		"status":        result.StatusCode,
	}
	if exp := result.Expiry(); !exp.IsZero() {
		fields["expires_at"] = exp
	}
	logger.InfoObj("login succeeded", "login_result", fields)
	return nil
}
