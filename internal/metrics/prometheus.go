package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

// Recorder keeps valuation metrics on its own registry. It satisfies the
// quote, snapshot and write-error observers of the pricing, valuation and
// writeback packages.
type Recorder struct {
	registry    *prometheus.Registry
	lookups     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	totalValue  prometheus.Gauge
	holdings    prometheus.Gauge
	failed      prometheus.Gauge
	lastRun     prometheus.Gauge
	noData      prometheus.Counter
	writeErrors prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_price_lookups_total",
				Help: "Price lookups by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_price_lookup_duration_seconds",
				Help:    "Duration of uncached price lookups in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		totalValue: f.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_total_value_usd",
			Help: "Total market value of the last valuation pass",
		}),
		holdings: f.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_holdings",
			Help: "Holdings in the last valuation pass",
		}),
		failed: f.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_failed_lookups",
			Help: "Failed price lookups in the last valuation pass",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_last_run_timestamp_seconds",
			Help: "Unix time of the last valuation pass",
		}),
		noData: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_no_data_runs_total",
			Help: "Valuation passes whose holdings source returned nothing",
		}),
		writeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_writeback_errors_total",
			Help: "Rows that failed to write back",
		}),
	}
}

func (r *Recorder) ObserveQuote(route models.Route, ok bool, elapsed time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.lookups.WithLabelValues(route.String(), outcome).Inc()
	r.latency.WithLabelValues(route.String()).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveSnapshot(s *models.PortfolioSnapshot) {
	total, _ := s.TotalValue.Float64()
	r.totalValue.Set(total)
	r.holdings.Set(float64(len(s.Holdings)))
	r.failed.Set(float64(len(s.FailedTickers())))
	r.lastRun.Set(float64(s.TakenAt.Unix()))
	if s.NoData {
		r.noData.Inc()
	}
}

func (r *Recorder) ObserveWriteError() {
	r.writeErrors.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
