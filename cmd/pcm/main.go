package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/pcm/internal/app"
	"github.com/atvirokodosprendimai/pcm/internal/config"
	"github.com/atvirokodosprendimai/pcm/internal/logging"
)

func main() {
	cmd := &cli.Command{
		Name:  "pcm",
		Usage: "Metadata-driven collection schema manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("PCM_CONFIG"),
				Usage:   "YAML config file (defaults to ./pcm.yaml when present)",
			},
			&cli.StringFlag{
				Name:    "driver",
				Sources: cli.EnvVars("PCM_DRIVER"),
				Usage:   "Database driver: sqlite or postgres",
			},
			&cli.StringFlag{
				Name:    "dsn",
				Sources: cli.EnvVars("PCM_DSN"),
				Usage:   "SQLite file path or Postgres connection string",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Sources: cli.EnvVars("PCM_LOG_LEVEL"),
				Usage:   "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Sources: cli.EnvVars("PCM_LOG_FORMAT"),
				Usage:   "text or json",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Provision the metadata tables and exit",
				Action: runInit,
			},
			{
				Name:  "serve",
				Usage: "Run the collection admin HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Sources: cli.EnvVars("PCM_ADDR"),
						Usage:   "HTTP listen address",
					},
					&cli.StringFlag{
						Name:    "bootstrap-api-key",
						Sources: cli.EnvVars("PCM_BOOTSTRAP_API_KEY"),
						Usage:   "Optional API key to upsert at startup",
					},
					&cli.StringFlag{
						Name:    "bootstrap-key-name",
						Sources: cli.EnvVars("PCM_BOOTSTRAP_KEY_NAME"),
						Usage:   "Name for bootstrap API key",
					},
					&cli.StringFlag{
						Name:    "webhook-url",
						Sources: cli.EnvVars("PCM_WEBHOOK_URL"),
						Usage:   "Outbox event webhook target URL",
					},
					&cli.StringFlag{
						Name:    "webhook-secret",
						Sources: cli.EnvVars("PCM_WEBHOOK_SECRET"),
						Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
					},
					&cli.DurationFlag{
						Name:    "dispatch-interval",
						Sources: cli.EnvVars("PCM_DISPATCH_INTERVAL"),
						Usage:   "Outbox polling interval",
					},
				},
				Action: runServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("pcm failed", "err", err)
		os.Exit(1)
	}
}

// settings merges the config file with flags; a flag that was set wins.
func settings(c *cli.Command) (config.Settings, *slog.Logger, error) {
	s, err := config.Load(c.String("config"))
	if err != nil {
		return config.Settings{}, nil, err
	}
	overrideString(c, "driver", &s.Driver)
	overrideString(c, "dsn", &s.DSN)
	overrideString(c, "log-level", &s.LogLevel)
	overrideString(c, "log-format", &s.LogFormat)
	overrideString(c, "addr", &s.Addr)
	overrideString(c, "bootstrap-api-key", &s.BootstrapAPIKey)
	overrideString(c, "bootstrap-key-name", &s.BootstrapKeyName)
	overrideString(c, "webhook-url", &s.WebhookURL)
	overrideString(c, "webhook-secret", &s.WebhookSecret)
	if c.IsSet("dispatch-interval") {
		s.DispatchInterval = c.Duration("dispatch-interval")
	}

	logger, err := logging.New(logging.Config{Level: s.LogLevel, Format: s.LogFormat}, os.Stderr)
	if err != nil {
		return config.Settings{}, nil, err
	}
	slog.SetDefault(logger)
	return s, logger, nil
}

func overrideString(c *cli.Command, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}

func runInit(ctx context.Context, c *cli.Command) error {
	s, logger, err := settings(c)
	if err != nil {
		return err
	}
	if err := app.Init(ctx, s.Driver, s.DSN); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("metadata tables ready", "driver", s.Driver)
	return nil
}

func runServe(ctx context.Context, c *cli.Command) error {
	s, logger, err := settings(c)
	if err != nil {
		return err
	}

	server, closer, err := app.NewServer(ctx, app.Config{
		Addr:             s.Addr,
		Driver:           s.Driver,
		DSN:              s.DSN,
		BootstrapAPIKey:  s.BootstrapAPIKey,
		BootstrapKeyName: s.BootstrapKeyName,
		WebhookURL:       s.WebhookURL,
		WebhookSecret:    s.WebhookSecret,
		DispatchInterval: s.DispatchInterval,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error("close resources", "err", closeErr)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.Addr, "driver", s.Driver)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
