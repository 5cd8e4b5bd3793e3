// Command gateway runs the realtime chat gateway: the websocket endpoint at
// /ws plus the REST API for history, read state, notifications and presence.
//
// @title                      Chat Gateway API
// @version                    1.0
// @description                REST companion to the realtime websocket gateway.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-gateway/internal/config"
	httpapi "github.com/tbourn/go-chat-gateway/internal/http"
	"github.com/tbourn/go-chat-gateway/internal/observability"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/sysutil"
)

const shutdownTimeout = 30 * time.Second

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogging(cfg.LogLevel, cfg.OTEL.ServiceName, ver, cfg.LogPretty)

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	dsn := cfg.DB.DSN
	if cfg.DB.Driver == repo.DriverSQLite {
		dsn = sysutil.FirstNonEmpty(cfg.DB.DSN, cfg.DB.Path)
	}
	db, err := repo.Open(cfg.DB.Driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle")
	}

	r := gin.New()
	hub := httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.Handler(r),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("gin_mode", cfg.GinMode).Str("db", cfg.DB.Driver).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		// Sessions first so clients get a going-away close, then the
		// listener, then the store they were writing to.
		"gateway": func(ctx context.Context) error {
			log.Info().Msg("draining websocket sessions")
			if err := hub.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("hub shutdown")
			}
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return sqlDB.Close()
		},
		"otel": func(ctx context.Context) error {
			return otelShutdown(ctx)
		},
	})

	code := <-wait
	log.Info().Int("exit_code", code).Msg("gateway stopped")
	os.Exit(code)
}
