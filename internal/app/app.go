package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/pcm/internal/adapters/events"
	"github.com/atvirokodosprendimai/pcm/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/pcm/internal/adapters/sqlstore"
	"github.com/atvirokodosprendimai/pcm/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
	"github.com/atvirokodosprendimai/pcm/internal/core/usecase"
	"github.com/atvirokodosprendimai/pcm/migrations"
)

type Config struct {
	Addr             string
	Driver           string
	DSN              string
	BootstrapAPIKey  string
	BootstrapKeyName string
	WebhookURL       string
	WebhookSecret    string
	DispatchInterval time.Duration
	Logger           *slog.Logger
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Init opens the database and provisions the metadata tables. It is safe to run repeatedly.
func Init(ctx context.Context, driver, dsn string) error {
	db, err := openMigrated(ctx, driver, dsn)
	if err != nil {
		return err
	}
	return db.Close()
}

func openMigrated(ctx context.Context, driver, dsn string) (*gormdb.DB, error) {
	db, err := gormdb.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, writeSQLDB, db.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openMigrated(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	transactor, err := sqlstore.NewTransactor(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	validator, err := usecase.NewDefinitionValidator()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	reconciler := usecase.NewSchemaReconciler(logger)
	collectionService := usecase.NewCollectionService(transactor, reconciler, usecase.WithLogger(logger))
	authService := usecase.NewAuthService(sqlstore.NewAPIKeyRepository(db))

	if cfg.BootstrapAPIKey != "" {
		name := cfg.BootstrapKeyName
		if name == "" {
			name = "bootstrap"
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := authService.RegisterKey(bootstrapCtx, name, cfg.BootstrapAPIKey)
		bootstrapCancel()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
		}
		logger.Info("bootstrap api key registered", "name", name)
	}

	var publisher ports.EventPublisher = events.NewLogPublisher(logger)
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 5*time.Second)
		logger.Info("outbox events delivered by webhook", "url", cfg.WebhookURL)
	}

	interval := cfg.DispatchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	dispatcher := usecase.NewOutboxDispatcher(sqlstore.NewOutboxRepository(db), publisher, interval, 100,
		usecase.WithDispatcherLogger(logger))
	dispatcher.Start(context.Background())

	handler := httpapi.NewHandler(collectionService, validator, authService, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}
