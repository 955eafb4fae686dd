package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ldi/dayplan/internal/config"
	"github.com/ldi/dayplan/internal/db"
	"github.com/ldi/dayplan/internal/docstore"
	"github.com/ldi/dayplan/internal/identity"
	"github.com/ldi/dayplan/internal/taskstore"
)

var errNoSecret = errors.New("jwt secret is not configured: run `dayplan init` or set DAYPLAN_JWT_SECRET")

// app is the local backend wired together: database, identity provider
// and task store client.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *db.DB
	docs     *docstore.Store
	provider *identity.Provider
	tasks    *taskstore.Client
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	if cfg.JWTSecret == "" {
		return nil, errNoSecret
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if n, err := database.PurgeRevokedTokens(ctx, time.Now()); err != nil {
		logger.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		logger.Debug("purged revoked tokens", "count", n)
	}

	tokens := identity.NewTokenManager(identity.TokenConfig{
		SecretKey: cfg.JWTSecret,
		TTL:       cfg.TokenTTL,
	})
	provider := identity.NewProvider(database, identity.NewPasswordHasher(cfg.BcryptCost), tokens, logger)
	docs := docstore.New(database, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		docs:     docs,
		provider: provider,
		tasks:    taskstore.New(docs, logger),
	}, nil
}

// enableAutoSnapshot exports after every change when configured.
func (a *app) enableAutoSnapshot() {
	if a.cfg.AutoSnapshot && a.cfg.SnapshotPath != "" {
		a.db.EnableAutoSnapshot(a.cfg.SnapshotPath, a.logger)
		a.logger.Info("auto snapshot enabled", "path", a.cfg.SnapshotPath)
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
