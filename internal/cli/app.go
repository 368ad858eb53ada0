// Package cli holds the portfolio subcommands and the wiring they share.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-portfolio/internal/cache"
	"github.com/kjannette/trahn-portfolio/internal/config"
	"github.com/kjannette/trahn-portfolio/internal/db"
	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/holdings"
	"github.com/kjannette/trahn-portfolio/internal/logging"
	"github.com/kjannette/trahn-portfolio/internal/metrics"
	"github.com/kjannette/trahn-portfolio/internal/notifications"
	"github.com/kjannette/trahn-portfolio/internal/pricing"
	"github.com/kjannette/trahn-portfolio/internal/repository"
	"github.com/kjannette/trahn-portfolio/internal/service"
	"github.com/kjannette/trahn-portfolio/internal/valuation"
	"github.com/kjannette/trahn-portfolio/internal/writeback"
)

var (
	configPath   = flag.String("config", config.DefaultPath, "Path to the TOML config file")
	holdingsMode = flag.String("holdings", "", "Override HOLDINGS_SOURCE (auto, csv, notion, static)")
)

// Register adds every portfolio subcommand to c.
func Register(c *subcommands.Commander) {
	c.Register(&valueCmd{}, "valuation")
	c.Register(&syncCmd{}, "valuation")
	c.Register(&serveCmd{}, "server")
	c.Register(&checkCmd{}, "diagnostics")
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
}

// app is everything one command invocation needs. Close releases it.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Recorder
	pool    *pgxpool.Pool
	notion  *external.NotionClient
	svc     *service.Service
	closers []func()
}

// loadConfig reads and validates the config. Warnings go to the log.
func loadConfig(stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(*configPath, *configPath != config.DefaultPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if *holdingsMode != "" {
		cfg.HoldingsSource = *holdingsMode
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err := cfg.Validate(); err != nil {
		return nil, log, err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig(os.Stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	if cfg.NotionConfigured() {
		a.notion = external.NewNotionClient(cfg.NotionToken,
			external.WithNotionURL(cfg.NotionBaseURL),
			external.WithNotionVersion(cfg.NotionVersion),
			external.WithNotionLogger(logging.Component(log, "notion")),
		)
	}

	quoteCache, err := a.quoteCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var closes pricing.CloseSource = external.NewYahooClient(cfg.YahooURL, cfg.LookupTimeout)
	if cfg.EquitySource == "eodhd" {
		closes = external.NewEODHDClient(cfg.EODHDAPIKey, cfg.EODHDURL, cfg.LookupTimeout)
	}
	spot := external.NewCoinGeckoClient(
		external.WithCoinGeckoURL(cfg.CoinGeckoURL),
		external.WithCoinGeckoAPIKey(cfg.CoinGeckoAPIKey),
		external.WithCoinGeckoTimeout(cfg.LookupTimeout),
	)
	resolver := pricing.NewResolver(spot, closes, pricing.Options{
		CryptoIDs:  cfg.CryptoIDs,
		GoldSymbol: cfg.GoldSymbol,
		Timeout:    cfg.LookupTimeout,
		Cache:      quoteCache,
		CacheTTL:   cfg.QuoteCacheTTL,
		Observer:   a.metrics,
		Logger:     logging.Component(log, "pricing"),
	})

	source, err := a.holdingsSource()
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := service.Deps{
		Engine:       valuation.NewEngine(resolver, a.metrics, logging.Component(log, "valuation")),
		Source:       source,
		NotifyAlways: cfg.NotifyAlways,
		Logger:       logging.Component(log, "service"),
	}

	if cfg.DatabaseEnabled() {
		if err := a.connectDB(ctx); err != nil {
			a.Close()
			return nil, err
		}
		deps.Store = repository.NewSnapshotRepo(a.pool)
	}

	if cfg.WebhookURL != "" {
		deps.Notifier = notifications.NewSender(cfg.WebhookURL, cfg.BotName, logging.Component(log, "notify"))
	}

	if a.notion != nil {
		deps.NewSyncer = func() service.Syncer {
			index := writeback.NewPageIndex(a.notion, cfg.NotionDatabaseID, cfg.NotionDefaultAccount)
			return writeback.NewSyncer(a.notion, index, logging.Component(log, "writeback"),
				writeback.WithDelay(cfg.WriteDelay),
				writeback.WithErrorObserver(a.metrics),
			)
		}
	}

	a.svc = service.New(deps)
	log.Info().
		Str("holdings", source.Name()).
		Str("equity", closes.Name()).
		Bool("database", a.pool != nil).
		Bool("writeback", deps.NewSyncer != nil).
		Msg("portfolio valuer ready")
	return a, nil
}

func (a *app) quoteCache(ctx context.Context) (cache.QuoteCache, error) {
	if a.cfg.QuoteCacheTTL <= 0 {
		return nil, nil
	}
	if a.cfg.RedisAddr == "" {
		return cache.NewMemoryQuoteCache(), nil
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:       a.cfg.RedisAddr,
		Password:   a.cfg.RedisPassword,
		DB:         a.cfg.RedisDB,
		TLSEnabled: a.cfg.RedisTLS,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = rc.Close() })
	return rc, nil
}

func (a *app) holdingsSource() (holdings.Source, error) {
	c := holdings.Candidates{}
	if a.cfg.HoldingsCSV != "" {
		c.CSV = holdings.NewCSVSource(a.cfg.HoldingsCSV)
	}
	if a.notion != nil {
		c.Notion = holdings.NewNotionSource(a.notion, a.cfg.NotionDatabaseID, logging.Component(a.log, "holdings"))
	}
	if len(a.cfg.Holdings) > 0 {
		c.Static = holdings.NewStaticSource(a.cfg.StaticHoldings())
	}
	return holdings.Select(a.cfg.HoldingsSource, c)
}

func (a *app) connectDB(ctx context.Context) error {
	dbLog := logging.Component(a.log, "db")
	pool, err := db.Connect(ctx, a.cfg.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() {
		pool.Close()
		dbLog.Info().Msg("connection pool closed")
	})

	if err := db.TestConnection(ctx, pool, dbLog); err != nil {
		return err
	}
	if a.cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, dbLog); err != nil {
			return err
		}
	}
	return nil
}

// Close runs the registered closers in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
