package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), false)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.HoldingsSource)
	assert.Equal(t, "GC=F", cfg.GoldSymbol)
	assert.Equal(t, 20*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.WriteDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RequiredFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), true)
	assert.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
holdings_source = "static"
gold_symbol = "GC.COMM"
write_delay = "1s"
lookup_timeout = "5s"

[crypto_ids]
sol = "solana"

[[holdings]]
account = "해외"
ticker = "BTC-USD"
units = 0.15

[[holdings]]
account = "금현물"
ticker = "GOLDKRX"
units = "10"

[[holdings]]
account = "ISA"
ticker = "354500.KS"
units = 30
`)
	t.Setenv("GOLD_SYMBOL", "XAUUSD.FOREX")
	t.Setenv("WRITE_DELAY", "0")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.HoldingsSource)
	assert.Equal(t, "XAUUSD.FOREX", cfg.GoldSymbol, "env wins over file")
	assert.Equal(t, time.Duration(0), cfg.WriteDelay)
	assert.Equal(t, 5*time.Second, cfg.LookupTimeout)
	assert.Equal(t, "solana", cfg.CryptoIDs["sol"])

	rows := cfg.StaticHoldings()
	require.Len(t, rows, 3)
	assert.Equal(t, "0.15", rows[0].Units.String())
	assert.Equal(t, "10", rows[1].Units.String())
	assert.Equal(t, "30", rows[2].Units.String())
	assert.Equal(t, "금현물", rows[1].Account)
}

func TestLoad_BadUnits(t *testing.T) {
	path := writeFile(t, `
[[holdings]]
ticker = "VOO"
units = "twelve"
`)
	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.HoldingsSource = "ftp" }},
		{"notion without token", func(c *Config) { c.HoldingsSource = "notion" }},
		{"eodhd without key", func(c *Config) { c.EquitySource = "eodhd" }},
		{"unknown equity source", func(c *Config) { c.EquitySource = "bloomberg" }},
		{"zero timeout", func(c *Config) { c.LookupTimeout = 0 }},
		{"negative delay", func(c *Config) { c.WriteDelay = -time.Second }},
		{"blank ticker", func(c *Config) { c.Holdings = []HoldingEntry{{Account: "x"}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "2m")
	assert.Equal(t, 2*time.Minute, envDuration("X_DUR", 0))
	t.Setenv("X_DUR", "1.5")
	assert.Equal(t, 1500*time.Millisecond, envDuration("X_DUR", 0))
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Second, envDuration("X_DUR", time.Second))
}

func TestDSN(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.DatabaseEnabled())

	cfg.DBUser, cfg.DBPassword = "app", "pw"
	assert.True(t, cfg.DatabaseEnabled())
	assert.Equal(t, "postgres://app:pw@localhost:5432/portfolio?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://elsewhere/db"
	assert.Equal(t, "postgres://elsewhere/db", cfg.DSN())
}

func TestPrint_HidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.NotionToken = "secret_abc"
	cfg.NotionDatabaseID = "db123"
	cfg.CoinGeckoAPIKey = "cg-key"

	var buf bytes.Buffer
	cfg.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "configured (db123)")
	assert.NotContains(t, out, "secret_abc")
	assert.NotContains(t, out, "cg-key")
}

func TestWarnings(t *testing.T) {
	cfg := Defaults()
	cfg.QuoteCacheTTL = time.Minute
	assert.Contains(t, cfg.Warnings(), "QUOTE_CACHE_TTL set without REDIS_ADDR: using in-process cache")
}
