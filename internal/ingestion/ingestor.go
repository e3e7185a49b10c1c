package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/observability"
	"github.com/ruralpay/energyledger/internal/services"
)

// Outcome of applying one event, also used as the metrics label.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

const defaultDedupeTTL = 72 * time.Hour

// Ingestor turns meter reports and payment notices into ledger credits. With
// a Redis client it remembers applied events so redeliveries credit once.
type Ingestor struct {
	ledger    Ledger
	redis     *redis.Client
	dedupeTTL time.Duration
	currency  string
	metrics   *observability.Metrics
	log       zerolog.Logger
}

type IngestorOption func(*Ingestor)

func WithDedupe(rdb *redis.Client, ttl time.Duration) IngestorOption {
	return func(in *Ingestor) {
		in.redis = rdb
		if ttl > 0 {
			in.dedupeTTL = ttl
		}
	}
}

// WithCurrency rejects payment notices in any other currency.
func WithCurrency(code string) IngestorOption {
	return func(in *Ingestor) {
		in.currency = code
	}
}

func WithIngestMetrics(m *observability.Metrics) IngestorOption {
	return func(in *Ingestor) {
		in.metrics = m
	}
}

func WithIngestLogger(l zerolog.Logger) IngestorOption {
	return func(in *Ingestor) {
		in.log = l
	}
}

func NewIngestor(ledger Ledger, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		ledger:    ledger,
		dedupeTTL: defaultDedupeTTL,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Parse decodes a raw payload, counting it as malformed on failure.
func (in *Ingestor) Parse(kind EventKind, data []byte) (Event, error) {
	evt, err := ParseEvent(kind, data)
	if err != nil {
		in.metrics.RecordIngest(string(kind), ResultMalformed)
		return nil, err
	}
	return evt, nil
}

// Apply credits the ledger for evt. It returns false without error when the
// event was already applied.
func (in *Ingestor) Apply(ctx context.Context, evt Event) (applied bool, err error) {
	defer func() { in.metrics.RecordIngest(string(evt.Kind()), resultOf(applied, err)) }()

	if p, ok := evt.(*PaymentNotice); ok && in.currency != "" && p.Currency != "" && p.Currency != in.currency {
		return false, fmt.Errorf("payment %s in %s, ledger settles in %s: %w",
			p.PaymentRef, p.Currency, in.currency, models.ErrInvalidAmount)
	}

	key := "ingest:" + evt.DedupeKey()
	if in.redis != nil {
		fresh, err := in.redis.SetNX(ctx, key, 1, in.dedupeTTL).Result()
		if err != nil {
			return false, fmt.Errorf("dedupe %s: %v: %w", key, err, models.ErrStoreUnavailable)
		}
		if !fresh {
			in.log.Debug().Str("key", key).Msg("event already applied")
			return false, nil
		}
	}

	ctx = services.WithReference(ctx, evt.DedupeKey())
	if err := evt.credit(ctx, in.ledger); err != nil {
		if in.redis != nil {
			// forget the key so a redelivery can retry
			if derr := in.redis.Del(context.WithoutCancel(ctx), key).Err(); derr != nil {
				in.log.Warn().Err(derr).Str("key", key).Msg("failed to clear dedupe key")
			}
		}
		return false, err
	}

	in.log.Info().Str("kind", string(evt.Kind())).Str("key", evt.DedupeKey()).Msg("event applied")
	return true, nil
}

func resultOf(applied bool, err error) string {
	switch {
	case err == nil && applied:
		return ResultApplied
	case err == nil:
		return ResultDuplicate
	case models.IsBusinessError(err):
		return ResultRejected
	default:
		return ResultError
	}
}
