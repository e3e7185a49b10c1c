package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ruralpay/energyledger/internal/models"
)

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	LedgerOps         *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	TradesTotal     prometheus.Counter
	TradedKWh       prometheus.Counter
	OffersExpired   prometheus.Counter
	OpenOffers      prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	IngestedEvents  *prometheus.CounterVec
}

// NewMetrics registers all collectors on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all collectors on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LedgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_ledger_operations_total",
			Help: "Ledger operations by outcome",
		}, []string{"op", "result"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "energy_operation_duration_seconds",
			Help:    "Time to complete a ledger, offer or trade operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),

		TradesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "energy_trades_total",
			Help: "Trades settled",
		}),

		TradedKWh: factory.NewCounter(prometheus.CounterOpts{
			Name: "energy_traded_kwh_total",
			Help: "Energy transferred by settled trades, in kWh",
		}),

		OffersExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "energy_offers_expired_total",
			Help: "Offers moved to EXPIRED",
		}),

		OpenOffers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "energy_open_offers",
			Help: "Offers in ACTIVE or PARTIALLY_FILLED at the last sweep",
		}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_events_published_total",
			Help: "Trade events handed to the broker",
		}, []string{"result"}),

		IngestedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_ingested_events_total",
			Help: "Meter reports and payment notices consumed, by outcome",
		}, []string{"kind", "result"}),
	}
}

// ObserveOp records one operation outcome and its latency.
func (m *Metrics) ObserveOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case models.IsBusinessError(err):
		result = "rejected"
	default:
		result = "error"
	}
	m.LedgerOps.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordTrade(kwh float64) {
	if m == nil {
		return
	}
	m.TradesTotal.Inc()
	m.TradedKWh.Add(kwh)
}

func (m *Metrics) RecordExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.OffersExpired.Add(float64(n))
}

func (m *Metrics) SetOpenOffers(n int) {
	if m == nil {
		return
	}
	m.OpenOffers.Set(float64(n))
}

func (m *Metrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	m.EventsPublished.WithLabelValues("ok").Inc()
}

func (m *Metrics) RecordIngest(kind, result string) {
	if m == nil {
		return
	}
	m.IngestedEvents.WithLabelValues(kind, result).Inc()
}
