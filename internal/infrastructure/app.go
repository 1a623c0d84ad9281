package infrastructure

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server is a long-running component of the process: the HTTP API or the
// reconciliation worker pool. Start blocks until failure or shutdown.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type App struct {
	servers []Server
}

func NewApp(servers []Server) *App {
	return &App{servers: servers}
}

// Run starts every server and blocks until the context is cancelled or one
// of them fails. Servers are then asked to stop and allowed to drain
// in-flight work before storage connections are closed by the caller.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range a.servers {
		s := srv
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, srv := range a.servers {
		_ = srv.Stop(stopCtx)
	}

	return g.Wait()
}
