package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/medstore/storefront-auth/internal/audit"
	"github.com/medstore/storefront-auth/internal/auth"
	"github.com/medstore/storefront-auth/internal/config"
	"github.com/medstore/storefront-auth/internal/db"
	"github.com/medstore/storefront-auth/internal/http/api"
	"github.com/medstore/storefront-auth/internal/mail"
	"github.com/medstore/storefront-auth/internal/ratelimit"
	"github.com/medstore/storefront-auth/internal/security"
	"github.com/medstore/storefront-auth/internal/verification"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations without starting the server.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the authentication server and blocks until ctx is
// cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	tokens := security.NewTokenService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	recorder := audit.NewRecorder(conn, nil)
	limiter := buildLimiter(ctx, cfg)

	var sender mail.Sender
	if cfg.SMTP.Host != "" {
		sender = mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Warn("SMTP not configured, verification codes will be logged instead of sent")
		sender = mail.NewLogSender()
	}

	verifier := verification.NewService(conn, sender, nil)
	svc := auth.NewService(conn, tokens, limiter, recorder, verifier, nil)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, svc, tokens, recorder, limiter)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildLimiter selects the Redis-backed limiter when an address is
// configured, otherwise the in-process store with its background sweeper.
func buildLimiter(ctx context.Context, cfg config.Config) ratelimit.Store {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Infof("rate limiter backed by redis at %s", cfg.Redis.Addr)
		return ratelimit.NewRedisStore(client, "login", nil)
	}
	store := ratelimit.NewMemoryStore(nil)
	store.StartSweeper(ctx, ratelimit.SweepInterval)
	return store
}
