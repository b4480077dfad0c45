package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyhub/internal/pipeline"
	"github.com/alanyoungcy/polyhub/internal/server"
	"github.com/alanyoungcy/polyhub/internal/server/handler"
)

// ServerMode serves the HTTP API. Snapshots are built on demand by incoming
// requests.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode serves the HTTP API and keeps the snapshot warm with a background
// refresher.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Duration("refresh_interval", a.cfg.Pipeline.RefreshInterval.Duration),
		slog.Int("refresh_target", a.cfg.RefreshTarget()),
	)

	g, ctx := errgroup.WithContext(ctx)

	refresher := pipeline.NewRefresher(deps.Markets, a.cfg.RefreshTarget(), a.cfg.Pipeline.RefreshInterval.Duration, a.logger)
	g.Go(func() error {
		return refresher.RunLoop(ctx)
	})

	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer registers the API routes and runs the server inside g until
// ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Markets, a.logger),
		Markets: handler.NewMarketHandler(deps.Markets, handler.Limits{
			Default: a.cfg.API.DefaultLimit,
			Max:     a.cfg.API.MaxLimit,
		}, a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, Version),
	}

	srvCfg := server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}
	if deps.RateLimiter != nil {
		srvCfg.Limiter = deps.RateLimiter
		srvCfg.RateLimit = a.cfg.Redis.RateLimit
		srvCfg.RateWindow = a.cfg.Redis.RateWindow.Duration
	}

	srv := server.NewServer(srvCfg, handlers, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("addr", addr),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
