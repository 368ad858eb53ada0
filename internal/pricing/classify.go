// Package pricing resolves a USD unit price for a ticker.
//
// A ticker is first classified into a closed set of routes (equity, crypto,
// commodity) and the resolver then switches on the route:
//
//	BTC-USD  -> crypto    -> CoinGecko spot price of "bitcoin"
//	GOLDKRX  -> commodity -> latest gold-futures close / 31.1035 (USD per gram)
//	VOO      -> equity    -> latest daily close of "VOO"
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

const (
	CryptoSuffix      = "-USD"
	GoldSentinel      = "GOLDKRX"
	DefaultGoldSymbol = "GC=F"
)

// GramsPerTroyOunce converts a per-ounce gold quote into a per-gram price.
var GramsPerTroyOunce = decimal.RequireFromString("31.1035")

// DefaultCryptoIDs maps lower-case symbols to CoinGecko ids where they differ.
var DefaultCryptoIDs = map[string]string{
	"btc": "bitcoin",
	"eth": "ethereum",
}

// Classify picks the price route for ticker. The -USD suffix check runs
// first, so "GOLDKRX-USD" is crypto.
func Classify(ticker string) models.Route {
	switch {
	case strings.HasSuffix(ticker, CryptoSuffix):
		return models.RouteCrypto
	case ticker == GoldSentinel:
		return models.RouteCommodity
	default:
		return models.RouteEquity
	}
}

// CryptoKey is the lower-case symbol of a crypto ticker: "BTC-USD" -> "btc".
func CryptoKey(ticker string) string {
	return strings.ToLower(strings.TrimSuffix(ticker, CryptoSuffix))
}
