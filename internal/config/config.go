package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

const DefaultPath = "portfolio.toml"

type Config struct {
	// Holdings
	HoldingsSource string         `toml:"holdings_source"`
	HoldingsCSV    string         `toml:"holdings_csv"`
	Holdings       []HoldingEntry `toml:"holdings"`

	// Notion
	NotionToken          string        `toml:"notion_token"`
	NotionDatabaseID     string        `toml:"notion_database_id"`
	NotionBaseURL        string        `toml:"notion_base_url"`
	NotionVersion        string        `toml:"notion_version"`
	NotionDefaultAccount string        `toml:"notion_default_account"`
	WriteDelay           time.Duration `toml:"write_delay"`

	// Price sources
	CoinGeckoURL    string            `toml:"coingecko_url"`
	CoinGeckoAPIKey string            `toml:"coingecko_api_key"`
	CryptoIDs       map[string]string `toml:"crypto_ids"`
	EquitySource    string            `toml:"equity_source"`
	YahooURL        string            `toml:"yahoo_url"`
	EODHDAPIKey     string            `toml:"eodhd_api_key"`
	EODHDURL        string            `toml:"eodhd_url"`
	GoldSymbol      string            `toml:"gold_symbol"`
	LookupTimeout   time.Duration     `toml:"lookup_timeout"`

	// Quote cache
	QuoteCacheTTL time.Duration `toml:"quote_cache_ttl"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	RedisTLS      bool          `toml:"redis_tls"`

	// Database
	DatabaseURL   string `toml:"database_url"`
	DBHost        string `toml:"db_host"`
	DBPort        int    `toml:"db_port"`
	DBName        string `toml:"db_name"`
	DBUser        string `toml:"db_user"`
	DBPassword    string `toml:"db_password"`
	RunMigrations bool   `toml:"run_migrations"`

	// Notifications
	WebhookURL   string `toml:"webhook_url"`
	BotName      string `toml:"bot_name"`
	NotifyAlways bool   `toml:"notify_always"`

	// API
	ListenAddr      string `toml:"listen_addr"`
	APIKey          string `toml:"api_key"`
	CORSAllowOrigin string `toml:"cors_allow_origin"`

	// Output
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	RenderStyle string `toml:"render_style"`
	RenderWidth int    `toml:"render_width"`
}

// HoldingEntry is one [[holdings]] table of the config file.
type HoldingEntry struct {
	Account string `toml:"account"`
	Ticker  string `toml:"ticker"`
	Units   Units  `toml:"units"`
}

// Units accepts a TOML number or a decimal string.
type Units struct {
	d decimal.Decimal
}

func (u Units) Decimal() decimal.Decimal { return u.d }

func (u *Units) UnmarshalTOML(v any) error {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(x))
	case int64:
		d = decimal.NewFromInt(x)
	case float64:
		d, err = decimal.NewFromString(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return fmt.Errorf("units: %w", err)
	}
	u.d = d
	return nil
}

func Defaults() Config {
	return Config{
		HoldingsSource: "auto",
		HoldingsCSV:    "portfolio.csv",

		NotionBaseURL:        "https://api.notion.com/v1",
		NotionVersion:        "2022-06-28",
		NotionDefaultAccount: "Unclassified",
		WriteDelay:           300 * time.Millisecond,

		CoinGeckoURL:  "https://api.coingecko.com/api/v3",
		EquitySource:  "yahoo",
		YahooURL:      "https://query1.finance.yahoo.com",
		EODHDURL:      "https://eodhd.com/api",
		GoldSymbol:    "GC=F",
		LookupTimeout: 20 * time.Second,

		DBHost:        "localhost",
		DBPort:        5432,
		DBName:        "portfolio",
		RunMigrations: true,

		BotName: "PortfolioValuer",

		ListenAddr:      ":8080",
		CORSAllowOrigin: "*",

		LogLevel:    "info",
		LogFormat:   "console",
		RenderStyle: "auto",
		RenderWidth: 100,
	}
}

// Load layers defaults, the TOML file at path, .env and the environment,
// in that order. A missing file is fine unless required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(c *Config) {
	c.HoldingsSource = envStr("HOLDINGS_SOURCE", c.HoldingsSource)
	c.HoldingsCSV = envStr("HOLDINGS_CSV", c.HoldingsCSV)

	c.NotionToken = envStr("NOTION_TOKEN", c.NotionToken)
	c.NotionDatabaseID = envStr("NOTION_DATABASE_ID", c.NotionDatabaseID)
	c.NotionBaseURL = envStr("NOTION_BASE_URL", c.NotionBaseURL)
	c.NotionVersion = envStr("NOTION_VERSION", c.NotionVersion)
	c.NotionDefaultAccount = envStr("NOTION_DEFAULT_ACCOUNT", c.NotionDefaultAccount)
	c.WriteDelay = envDuration("WRITE_DELAY", c.WriteDelay)

	c.CoinGeckoURL = envStr("COINGECKO_URL", c.CoinGeckoURL)
	c.CoinGeckoAPIKey = envStr("COINGECKO_API_KEY", c.CoinGeckoAPIKey)
	c.EquitySource = envStr("EQUITY_SOURCE", c.EquitySource)
	c.YahooURL = envStr("YAHOO_URL", c.YahooURL)
	c.EODHDAPIKey = envStr("EODHD_API_KEY", c.EODHDAPIKey)
	c.EODHDURL = envStr("EODHD_URL", c.EODHDURL)
	c.GoldSymbol = envStr("GOLD_SYMBOL", c.GoldSymbol)
	c.LookupTimeout = envDuration("LOOKUP_TIMEOUT", c.LookupTimeout)

	c.QuoteCacheTTL = envDuration("QUOTE_CACHE_TTL", c.QuoteCacheTTL)
	c.RedisAddr = envStr("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envStr("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.RedisTLS = envBool("REDIS_TLS", c.RedisTLS)

	c.DatabaseURL = envStr("DATABASE_URL", c.DatabaseURL)
	c.DBHost = envStr("DB_HOST", c.DBHost)
	c.DBPort = envInt("DB_PORT", c.DBPort)
	c.DBName = envStr("DB_NAME", c.DBName)
	c.DBUser = envStr("DB_USER", c.DBUser)
	c.DBPassword = envStr("DB_PASSWORD", c.DBPassword)
	c.RunMigrations = envBool("RUN_MIGRATIONS", c.RunMigrations)

	c.WebhookURL = envStr("WEBHOOK_URL", c.WebhookURL)
	c.BotName = envStr("BOT_NAME", c.BotName)
	c.NotifyAlways = envBool("NOTIFY_ALWAYS", c.NotifyAlways)

	c.ListenAddr = envStr("LISTEN_ADDR", c.ListenAddr)
	c.APIKey = envStr("API_KEY", c.APIKey)
	c.CORSAllowOrigin = envStr("CORS_ALLOW_ORIGIN", c.CORSAllowOrigin)

	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr("LOG_FORMAT", c.LogFormat)
	c.RenderStyle = envStr("RENDER_STYLE", c.RenderStyle)
	c.RenderWidth = envInt("RENDER_WIDTH", c.RenderWidth)
}

func (c *Config) Validate() error {
	var errs []string

	switch c.HoldingsSource {
	case "auto", "csv", "static":
	case "notion":
		if !c.NotionConfigured() {
			errs = append(errs, "NOTION_TOKEN and NOTION_DATABASE_ID are required for HOLDINGS_SOURCE=notion")
		}
	default:
		errs = append(errs, fmt.Sprintf("HOLDINGS_SOURCE %q must be one of auto, csv, notion, static", c.HoldingsSource))
	}

	switch c.EquitySource {
	case "yahoo":
	case "eodhd":
		if c.EODHDAPIKey == "" {
			errs = append(errs, "EODHD_API_KEY is required for EQUITY_SOURCE=eodhd")
		}
	default:
		errs = append(errs, fmt.Sprintf("EQUITY_SOURCE %q must be yahoo or eodhd", c.EquitySource))
	}

	if c.LookupTimeout <= 0 {
		errs = append(errs, "LOOKUP_TIMEOUT must be positive")
	}
	if c.WriteDelay < 0 {
		errs = append(errs, "WRITE_DELAY must not be negative")
	}
	if c.QuoteCacheTTL < 0 {
		errs = append(errs, "QUOTE_CACHE_TTL must not be negative")
	}
	for i, h := range c.Holdings {
		if strings.TrimSpace(h.Ticker) == "" {
			errs = append(errs, fmt.Sprintf("holdings[%d]: ticker is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings lists settings that are legal but probably not intended.
func (c *Config) Warnings() []string {
	var out []string
	if c.NotionToken != "" && c.NotionDatabaseID == "" {
		out = append(out, "NOTION_TOKEN set without NOTION_DATABASE_ID: Notion disabled")
	}
	if c.QuoteCacheTTL > 0 && c.RedisAddr == "" {
		out = append(out, "QUOTE_CACHE_TTL set without REDIS_ADDR: using in-process cache")
	}
	if c.APIKey == "" {
		out = append(out, "API_KEY not set: REST API has no authentication")
	}
	return out
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Portfolio Valuer Configuration ===")
	fmt.Fprintf(w, "Holdings source: %s\n", c.HoldingsSource)
	fmt.Fprintf(w, "  CSV path: %s\n", c.HoldingsCSV)
	fmt.Fprintf(w, "  Static rows: %d\n", len(c.Holdings))
	fmt.Fprintf(w, "  Notion: %s\n", boolLabel(c.NotionConfigured(), "configured ("+c.NotionDatabaseID+")", "not set"))
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Equity source: %s\n", c.EquitySource)
	fmt.Fprintf(w, "Gold symbol: %s\n", c.GoldSymbol)
	fmt.Fprintf(w, "Lookup timeout: %s\n", c.LookupTimeout)
	fmt.Fprintf(w, "CoinGecko key: %s\n", boolLabel(c.CoinGeckoAPIKey != "", "configured", "not set"))
	fmt.Fprintf(w, "Crypto id overrides: %d\n", len(c.CryptoIDs))
	fmt.Fprintf(w, "Quote cache: %s\n", cacheLabel(c))
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Database: %s\n", boolLabel(c.DatabaseEnabled(), "enabled", "disabled"))
	fmt.Fprintf(w, "Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Fprintf(w, "Write delay: %s\n", c.WriteDelay)
	fmt.Fprintln(w, "======================================")
}

func (c *Config) NotionConfigured() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// DatabaseEnabled reports whether snapshots should be stored. DB_USER alone
// is enough, matching the DB_* defaults.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != "" || c.DBUser != ""
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// StaticHoldings converts the [[holdings]] tables to records.
func (c *Config) StaticHoldings() []models.HoldingRecord {
	out := make([]models.HoldingRecord, 0, len(c.Holdings))
	for _, h := range c.Holdings {
		out = append(out, models.HoldingRecord{
			Account: h.Account,
			Ticker:  strings.TrimSpace(h.Ticker),
			Units:   h.Units.Decimal(),
		})
	}
	return out
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration accepts Go durations ("300ms") or plain seconds ("20").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}

func cacheLabel(c *Config) string {
	if c.QuoteCacheTTL <= 0 {
		return "disabled"
	}
	if c.RedisAddr != "" {
		return fmt.Sprintf("redis %s, ttl %s", c.RedisAddr, c.QuoteCacheTTL)
	}
	return fmt.Sprintf("memory, ttl %s", c.QuoteCacheTTL)
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
