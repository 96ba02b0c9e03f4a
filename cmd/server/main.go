package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/config"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/logging"
	"attendance-cloud/internal/server"
	"github.com/gin-gonic/gin"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := docstore.Open(ctx, docstore.Options{
		Backend:       cfg.StoreBackend,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		DatabaseURL:   cfg.DatabaseURL,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("could not open document store")
	}
	defer closeStore()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: auth.DefaultTokenConfig("").Issuer,
	}

	router, closeRouter := server.NewRouter(server.Deps{
		Store:           store,
		TokenConfig:     tokenCfg,
		StaticRoot:      cfg.StaticRoot,
		EntryDocument:   cfg.EntryDocument,
		Version:         version,
		Logger:          logger,
		AnonSignInLimit: cfg.AnonSignInLimit,
	})
	defer closeRouter()

	logger.Info().Str("backend", cfg.StoreBackend).Str("version", version).Msg("starting")
	if err := server.Run(ctx, cfg, router, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		closeRouter()
		closeStore()
		os.Exit(1)
	}
}
