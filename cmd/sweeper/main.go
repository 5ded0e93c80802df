package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/app"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/config"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/utilities"
)

const shutdownGrace = 5 * time.Second

type flags struct {
	configPath string
	envFile    string
}

func main() {
	f := &flags{}
	var (
		cfg    *config.Config
		logger *zap.Logger
	)

	cmd := &cli.Command{
		Name:  "token-sweeper",
		Usage: "Remove expired refresh tokens, authorization codes and token handles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to YAML config file",
				Sources:     cli.EnvVars("SWEEPER_CONFIG"),
				Value:       "config.yaml",
				Destination: &f.configPath,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "dotenv file loaded before the environment is read",
				Sources:     cli.EnvVars("SWEEPER_ENV_FILE"),
				Value:       ".env",
				Destination: &f.envFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// a missing .env is fine; real env or defaults apply
			if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return ctx, fmt.Errorf("load env file %s: %w", f.envFile, err)
			}
			var err error
			cfg, err = config.Load(f.configPath)
			if err != nil {
				return ctx, err
			}
			logger, err = utilities.Init(cfg.Log)
			if err != nil {
				return ctx, fmt.Errorf("init logger: %w", err)
			}
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, cfg, logger.Sugar())
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the sweeper until interrupted",
				Action: func(ctx context.Context, c *cli.Command) error {
					return run(ctx, cfg, logger.Sugar())
				},
			},
			{
				Name:  "migrate",
				Usage: "create store tables, collections and indexes, then exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					return migrate(ctx, cfg, logger.Sugar())
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "token-sweeper: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("starting token sweeper",
		"backend", cfg.Store.Backend,
		"interval_seconds", cfg.Sweep.IntervalSeconds,
	)
	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.Shutdown(doneCtx); err != nil {
		sugar.Warnw("shutdown incomplete", "err", err)
	}
	sugar.Info("goodbye")
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())
	return a.Migrate(ctx)
}
