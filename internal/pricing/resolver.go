package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/cache"
	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/models"
)

const DefaultLookupTimeout = 20 * time.Second

var (
	ErrTimeout = errors.New("price lookup timed out")
	ErrNoClose = errors.New("no daily close available")
)

// SpotSource answers crypto spot prices keyed by coin id.
type SpotSource interface {
	SimplePrice(ctx context.Context, ids ...string) (map[string]decimal.Decimal, error)
}

// CloseSource answers the most recent daily closes of a symbol, oldest first.
type CloseSource interface {
	Name() string
	DailyCloses(ctx context.Context, symbol string) ([]external.Bar, error)
}

// Observer receives one call per resolved quote. The metrics recorder
// implements it.
type Observer interface {
	ObserveQuote(route models.Route, ok bool, elapsed time.Duration)
}

// QuoteResult is the outcome of one lookup: a price or a failure reason,
// never both. A failed result always carries a zero price.
type QuoteResult struct {
	Ticker string
	Route  models.Route
	Price  decimal.Decimal
	Source string
	Cached bool
	Err    error
}

func (r QuoteResult) OK() bool {
	return r.Err == nil
}

type Options struct {
	CryptoIDs  map[string]string
	GoldSymbol string
	Timeout    time.Duration
	Cache      cache.QuoteCache
	CacheTTL   time.Duration
	Observer   Observer
	Logger     zerolog.Logger
}

type Resolver struct {
	spot       SpotSource
	closes     CloseSource
	cryptoIDs  map[string]string
	goldSymbol string
	timeout    time.Duration
	cache      cache.QuoteCache
	cacheTTL   time.Duration
	observer   Observer
	log        zerolog.Logger
}

func NewResolver(spot SpotSource, closes CloseSource, opts Options) *Resolver {
	ids := make(map[string]string, len(DefaultCryptoIDs)+len(opts.CryptoIDs))
	for k, v := range DefaultCryptoIDs {
		ids[k] = v
	}
	for k, v := range opts.CryptoIDs {
		ids[strings.ToLower(k)] = strings.ToLower(v)
	}

	r := &Resolver{
		spot:       spot,
		closes:     closes,
		cryptoIDs:  ids,
		goldSymbol: opts.GoldSymbol,
		timeout:    opts.Timeout,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		observer:   opts.Observer,
		log:        opts.Logger,
	}
	if r.goldSymbol == "" {
		r.goldSymbol = DefaultGoldSymbol
	}
	if r.timeout <= 0 {
		r.timeout = DefaultLookupTimeout
	}
	return r
}

// CoinID is the CoinGecko id a crypto ticker resolves to.
func (r *Resolver) CoinID(ticker string) string {
	key := CryptoKey(ticker)
	if id, ok := r.cryptoIDs[key]; ok {
		return id
	}
	return key
}

// Quote resolves ticker to a USD price. It never panics or returns an error:
// failures come back inside the result with a zero price.
func (r *Resolver) Quote(ctx context.Context, ticker string) QuoteResult {
	res := QuoteResult{Ticker: ticker, Route: Classify(ticker), Price: decimal.Zero}
	res.Source = r.sourceName(res.Route)
	start := time.Now()

	if price, ok := r.cached(ctx, ticker); ok {
		res.Price = price
		res.Cached = true
		return res
	}

	price, err := r.bounded(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		switch res.Route {
		case models.RouteCrypto:
			return r.crypto(ctx, ticker)
		case models.RouteCommodity:
			return r.gold(ctx)
		default:
			return r.equity(ctx, ticker)
		}
	})
	elapsed := time.Since(start)

	if err != nil {
		res.Err = err
		r.log.Warn().
			Err(err).
			Str("ticker", ticker).
			Stringer("route", res.Route).
			Dur("elapsed", elapsed).
			Msg("price lookup failed")
	} else {
		res.Price = price
		r.store(ctx, ticker, price)
		r.log.Debug().
			Str("ticker", ticker).
			Stringer("route", res.Route).
			Str("price", price.String()).
			Dur("elapsed", elapsed).
			Msg("price resolved")
	}

	if r.observer != nil {
		r.observer.ObserveQuote(res.Route, res.OK(), elapsed)
	}
	return res
}

// bounded runs fetch under the lookup timeout. The wait is enforced here
// even if a source ignores its context.
func (r *Resolver) bounded(ctx context.Context, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		price decimal.Decimal
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := fetch(ctx)
		done <- outcome{p, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return decimal.Zero, fmt.Errorf("%w after %s: %v", ErrTimeout, r.timeout, o.err)
		}
		return o.price, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return decimal.Zero, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		}
		return decimal.Zero, ctx.Err()
	}
}

func (r *Resolver) crypto(ctx context.Context, ticker string) (decimal.Decimal, error) {
	id := r.CoinID(ticker)
	prices, err := r.spot.SimplePrice(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	// An id CoinGecko does not list prices at zero rather than failing.
	return prices[id], nil
}

func (r *Resolver) gold(ctx context.Context) (decimal.Decimal, error) {
	bars, err := r.closes.DailyCloses(ctx, r.goldSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrNoClose, r.goldSymbol)
	}
	perOunce := bars[len(bars)-1].Close
	return perOunce.Div(GramsPerTroyOunce), nil
}

func (r *Resolver) equity(ctx context.Context, ticker string) (decimal.Decimal, error) {
	bars, err := r.closes.DailyCloses(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if len(bars) == 0 {
		return decimal.Zero, nil
	}
	return bars[len(bars)-1].Close, nil
}

func (r *Resolver) sourceName(route models.Route) string {
	if route == models.RouteCrypto {
		return "coingecko"
	}
	if r.closes == nil {
		return ""
	}
	return r.closes.Name()
}

func (r *Resolver) cached(ctx context.Context, ticker string) (decimal.Decimal, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return decimal.Zero, false
	}
	price, ok, err := r.cache.Get(ctx, ticker)
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("quote cache read failed")
		return decimal.Zero, false
	}
	return price, ok
}

// store keeps non-zero prices only; a zero means "no quote", which must be
// retried on the next refresh.
func (r *Resolver) store(ctx context.Context, ticker string, price decimal.Decimal) {
	if r.cache == nil || r.cacheTTL <= 0 || price.IsZero() {
		return
	}
	if err := r.cache.Set(ctx, ticker, price, r.cacheTTL); err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("quote cache write failed")
	}
}
