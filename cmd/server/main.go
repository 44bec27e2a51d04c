// Command server runs the HTTP API and the game WebSocket stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gh "github.com/gorilla/handlers"
	"github.com/jason-s-yu/songdecks/internal/accounts"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/cache"
	"github.com/jason-s-yu/songdecks/internal/catalog"
	"github.com/jason-s-yu/songdecks/internal/config"
	"github.com/jason-s-yu/songdecks/internal/database"
	"github.com/jason-s-yu/songdecks/internal/game"
	"github.com/jason-s-yu/songdecks/internal/handlers"
	"github.com/jason-s-yu/songdecks/internal/lists"
	"github.com/jason-s-yu/songdecks/internal/realtime"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/jason-s-yu/songdecks/internal/store/memstore"
	"github.com/jason-s-yu/songdecks/internal/workbench"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory store")
		return memstore.New(), func() {}, nil
	}
	if cfg.MigrateOnStart {
		mm, err := database.NewMigrationManager(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		err = mm.Up()
		mm.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

func openSessions(cfg config.Config) (*auth.Sessions, error) {
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.LoadSessions(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpire)
	}
	return auth.NewSessions(cfg.TokenExpire)
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := openSessions(cfg)
	if err != nil {
		return err
	}
	if cfg.PrivateKeyPath == "" {
		logger.Warn("JWT key paths not set, sessions will not survive a restart")
	}

	hub := realtime.NewHub(logger)
	publishers := game.Publishers{hub}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publishers = append(publishers, cache.NewActionPublisher(rdb, cfg.HistorianQueue))
		logger.WithField("queue", cfg.HistorianQueue).Info("publishing card actions to redis")
	}

	api := handlers.NewAPI(handlers.Services{
		Accounts:  accounts.NewService(st, sessions, logger),
		Catalog:   catalog.NewService(st, logger),
		Lists:     lists.NewEngine(st, logger),
		Games:     game.NewEngine(st, publishers, logger),
		Workbench: workbench.NewService(st, logger),
		Hub:       hub,
		Sessions:  sessions,
	}, handlers.Options{
		LoginRatePerMin: cfg.LoginRatePerMin,
		OriginPatterns:  cfg.CORSOrigins,
		SecureCookies:   cfg.SecureCookies,
	}, logger)

	cors := gh.CORS(
		gh.AllowedOrigins(cfg.CORSOrigins),
		gh.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		gh.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gh.AllowCredentials(),
	)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           cors(api.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
