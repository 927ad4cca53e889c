package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/echoserver"
	"git.home.luguber.info/inful/greq/internal/logfields"
)

// EchoCmd runs the echo server until interrupted.
type EchoCmd struct {
	Addr              string `name:"addr" help:"Listen address. Defaults to echo.addr."`
	RequestsPerMinute int    `name:"rpm" help:"Per-client rate limit; 0 disables it. Defaults to echo.requests_per_minute."`
	Quiet             bool   `short:"q" name:"quiet" help:"Do not log each request."`
}

func (e *EchoCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}

	opts := echoserver.DefaultOptions()
	opts.Quiet = e.Quiet
	opts.RequestsPerMinute = cfg.Echo.RequestsPerMinute
	if e.RequestsPerMinute > 0 {
		opts.RequestsPerMinute = e.RequestsPerMinute
	}
	addr := e.Addr
	if addr == "" {
		addr = cfg.Echo.Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := echoserver.New(opts)
	errCh := make(chan error, 1)
	go func() {
		g.Logger.Info("Echo server listening", logfields.Addr(addr))
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return greq.WrapError(err, greq.CategoryNetwork, "echo server failed").
				WithContext("addr", addr).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return greq.WrapError(err, greq.CategoryNetwork, "echo server shutdown failed").Build()
	}
	g.Logger.Info("Echo server stopped")
	return nil
}
