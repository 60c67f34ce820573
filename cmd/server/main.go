package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/auction-draft-backend/internal/config"
	"github.com/DoyleJ11/auction-draft-backend/internal/httpapi"
	"github.com/DoyleJ11/auction-draft-backend/internal/hub"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
	"github.com/DoyleJ11/auction-draft-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.Dev)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		return err
	}

	// Persistence is best effort: a sink that cannot start is logged and skipped.
	var (
		hooks   []lobby.Hook
		closers []io.Closer
		pg      *store.PostgresStore
	)
	if files, err := store.NewFileSnapshotter(cfg.BackupDir); err != nil {
		log.Warn("file backups disabled", zap.Error(err))
	} else {
		hooks = append(hooks, files.Save)
	}
	if cfg.DatabaseURL != "" {
		if pg, err = store.OpenPostgres(cfg.DatabaseURL); err != nil {
			log.Warn("postgres store disabled", zap.Error(err))
		} else {
			hooks = append(hooks, pg.Save)
			closers = append(closers, pg)
		}
	}
	if cfg.NATSURL != "" {
		if nc, err := store.ConnectNATS(cfg.NATSURL, log); err != nil {
			log.Warn("activity publisher disabled", zap.Error(err))
		} else {
			hooks = append(hooks, nc.Publish)
			closers = append(closers, nc)
		}
	}

	h := hub.NewHub(context.Background(), log,
		lobby.WithHooks(hooks...),
		lobby.WithAdvanceDelay(cfg.AdvanceDelay),
	)

	if pg != nil {
		n, err := h.Hydrate(ctx, pg)
		if err != nil {
			log.Error("hydration failed, starting empty", zap.Error(err))
		} else {
			log.Info("hydrated leagues", zap.Int("count", n))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, defaults, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		done := make(chan struct{})
		h.Inbox() <- hub.ShutdownHub{Done: done}
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("lobbies did not drain in time")
		}

		if cerr := store.CloseAll(closers...); cerr != nil {
			log.Warn("closing sinks", zap.Error(cerr))
		}
		return err
	})
	return g.Wait()
}
