package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/kjannette/trahn-portfolio/internal/api"
	"github.com/kjannette/trahn-portfolio/internal/logging"
)

const banner = `
╔══════════════════════════════════════╗
║        Portfolio Valuer v0.3         ║
║                                      ║
╚══════════════════════════════════════╝
`

type serveCmd struct {
	addr string
	warm bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the latest valuation over HTTP" }
func (*serveCmd) Usage() string {
	return `portfolio serve [-addr :8080] [-warm=false]

  Starts the REST API. New valuations run on POST /v1/portfolio/refresh.
  -warm runs one valuation before accepting requests.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address (defaults to LISTEN_ADDR)")
	f.BoolVar(&c.warm, "warm", true, "Run one valuation at startup")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Print(banner)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()
	a.cfg.Print(os.Stdout)

	addr := a.cfg.ListenAddr
	if c.addr != "" {
		addr = c.addr
	}
	opts := api.Options{
		Addr:       addr,
		APIKey:     a.cfg.APIKey,
		CORSOrigin: a.cfg.CORSAllowOrigin,
		Metrics:    a.metrics.Handler(),
		Logger:     logging.Component(a.log, "api"),
	}
	if a.pool != nil {
		opts.DB = a.pool
	}
	srv := api.NewServer(a.svc, opts)

	if c.warm {
		if _, err := a.svc.Refresh(ctx); err != nil {
			a.log.Warn().Err(err).Msg("warm-up valuation incomplete")
		}
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down gracefully")
	case err := <-errc:
		a.log.Error().Err(err).Msg("API server error")
		return subcommands.ExitFailure
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("API shutdown error")
	}
	a.log.Info().Msg("shutdown complete")
	return subcommands.ExitSuccess
}
