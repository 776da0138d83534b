// Package main imports a CSV export of the legacy registration sheet into Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bis-events/gatepass/config"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/internal/sheetimport"
	"github.com/bis-events/gatepass/pkg/database"
	"github.com/bis-events/gatepass/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		filePath string
		dryRun   bool
	)
	flagSet := pflag.NewFlagSet("gatepass-import", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "path to the sheet CSV export (required)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if filePath == "" {
		flagSet.PrintDefaults()
		return fmt.Errorf("--file is required")
	}

	logger := newLogger()
	defer logger.Sync()

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	regs, err := sheetimport.Parse(f)
	if err != nil {
		return err
	}
	logger.Info("sheet parsed", zap.String("file", filePath), zap.Int("rows", len(regs)))
	if dryRun {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	// Take the same lock the API uses so an import never interleaves with live writes.
	var locker lock.Locker = lock.NewLocal(cfg.Behavior.WriteLockTimeout)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb.Client, cfg.Behavior.WriteLockTimeout, cfg.Behavior.WriteLockLease, logger)
	}

	sum, err := sheetimport.Import(ctx, records.NewPostgres(pool), locker, regs, logger)
	if err != nil {
		return err
	}
	logger.Info("import finished", zap.Int("imported", sum.Imported), zap.Int("skipped", sum.Skipped))
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
