package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintfolio/dutchmint/internal/server"
	"github.com/mintfolio/dutchmint/internal/server/handler"
	"github.com/mintfolio/dutchmint/internal/server/ws"
	"github.com/mintfolio/dutchmint/internal/service"
)

// ServerMode runs the HTTP + WebSocket API: sale queries, purchases, and
// administrative mutations.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	return g.Wait()
}

// ArchiveMode runs only the receipt archiver on its configured interval. It
// needs PostgreSQL and S3 but neither the chain client nor the API server.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	return g.Wait()
}

// FullMode runs the API server and, when archiving is enabled, the receipt
// archiver in the same process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startHTTPServer(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	if a.cfg.Archive.Enabled {
		if err := a.startArchiver(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	} else {
		a.logger.InfoContext(ctx, "archive.enabled is false, receipt archiver not started")
	}

	return g.Wait()
}

// startHTTPServer adds the API server goroutines to the given errgroup: the
// WebSocket hub, the HTTP listener, and a shutdown watcher that drains
// in-flight requests when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Holdings == nil || deps.Access == nil {
		return fmt.Errorf("http server requires the token ledger client")
	}

	queries := service.NewQueryService(
		deps.SaleStore, deps.LifecycleStore, deps.ReceiptStore,
		deps.AuditStore, deps.SaleCache, a.logger,
	)
	mints := service.NewMintService(
		deps.SaleStore, deps.LifecycleStore, deps.ReceiptStore,
		deps.Holdings, deps.SaleCache, deps.LockManager,
		deps.SignalBus, deps.Notifier, a.logger,
	).WithLockTTL(a.cfg.Mint.LockTTL.Duration)
	admin := service.NewAdminService(
		deps.SaleStore, deps.LifecycleStore, deps.AuditStore,
		deps.Access, deps.SaleCache, deps.SignalBus, deps.Notifier, a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Sales:  handler.NewSaleHandler(queries, a.logger),
			Mints:  handler.NewMintHandler(mints, a.logger),
			Admin:  handler.NewAdminHandler(admin, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return nil
}

// startArchiver adds the periodic archive loop to the given errgroup. A run
// archives and prunes every receipt older than the retention window; the
// first run happens immediately so a restart never skips a full interval.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archiver requires s3 blob storage")
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	runOnce := func() {
		before := time.Now().UTC().Add(-retention)
		n, err := deps.Archiver.Run(ctx, before)
		if err != nil {
			a.logger.ErrorContext(ctx, "receipt archive run failed",
				slog.Int64("archived", n),
				slog.String("error", err.Error()),
			)
			return
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "receipt archive run complete",
				slog.Int64("archived", n),
				slog.Time("before", before),
			)
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runOnce()
			}
		}
	})

	return nil
}
