package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/medstore/storefront-auth/internal/app"
	"github.com/medstore/storefront-auth/internal/config"
)

// main runs the CLI entrypoint and exits on unrecoverable errors.
func main() {
	if errRun := run(context.Background(), os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the server or runs migrations.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("authserver", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	configPath := strings.TrimSpace(*cfgPath)
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}

	if *migrateOnly {
		return app.Migrate(ctx, cfg)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.RunServer(ctx, cfg)
}
