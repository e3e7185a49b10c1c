package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/config"
	"github.com/ruralpay/energyledger/internal/models"
)

// RawEvent is a message taken off a subject, before parsing.
type RawEvent struct {
	Subject   string
	Kind      EventKind
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // processed, or safely ignorable
	NakFunc   func() // transient failure, redeliver
	TermFunc  func() // poison message, never redeliver
}

// SubjectConfig maps a JetStream consumer onto an event kind.
type SubjectConfig struct {
	Subject      string
	Kind         EventKind
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the meter and payment consumers for cfg.
func DefaultSubjects(cfg config.NATSConfig) []SubjectConfig {
	subjects := []SubjectConfig{
		{Subject: cfg.MeterSubject + ".>", Kind: KindMeterReport, ConsumerName: "ledger-meter-reports", StreamName: cfg.IngestStream},
	}
	if cfg.PaymentSubject != "" {
		subjects = append(subjects, SubjectConfig{
			Subject: cfg.PaymentSubject + ".>", Kind: KindPaymentConfirmed, ConsumerName: "ledger-payments", StreamName: cfg.IngestStream,
		})
	}
	return subjects
}

// Subscriber consumes ingestion subjects and applies each message through an
// Ingestor.
type Subscriber struct {
	js        jetstream.JetStream
	ingestor  *Ingestor
	log       zerolog.Logger
	consumers []jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, ingestor *Ingestor, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:       js,
		ingestor: ingestor,
		log:      logger,
	}
}

// Subscribe creates durable consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (s *Subscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		kind := cfg.Kind
		consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
			s.Process(ctx, RawEvent{
				Subject:   msg.Subject(),
				Kind:      kind,
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
				TermFunc:  func() { msg.Term() },
			})
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		s.consumers = append(s.consumers, consumeCtx)
		s.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}
	return nil
}

// Process parses and applies one message, then settles it: malformed and
// rejected messages are terminated, storage faults are redelivered.
func (s *Subscriber) Process(ctx context.Context, raw RawEvent) {
	evt, err := s.ingestor.Parse(raw.Kind, raw.Data)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed message")
		raw.TermFunc()
		return
	}

	_, err = s.ingestor.Apply(ctx, evt)
	switch {
	case err == nil:
		raw.AckFunc()
	case models.IsBusinessError(err):
		s.log.Warn().Err(err).Str("subject", raw.Subject).Str("key", evt.DedupeKey()).Msg("event rejected by ledger")
		raw.TermFunc()
	default:
		s.log.Error().Err(err).Str("subject", raw.Subject).Str("key", evt.DedupeKey()).Msg("event failed, will be redelivered")
		raw.NakFunc()
	}
}

// Stop stops all consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.log.Info().Msg("NATS subscribers stopped")
}

// EnsureStreams creates the ingestion and trade export streams.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, cfg config.NATSConfig, logger zerolog.Logger) error {
	ingestSubjects := []string{cfg.MeterSubject + ".>"}
	if cfg.PaymentSubject != "" {
		ingestSubjects = append(ingestSubjects, cfg.PaymentSubject+".>")
	}

	streams := []jetstream.StreamConfig{
		{
			Name:      cfg.IngestStream,
			Subjects:  ingestSubjects,
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:       cfg.TradeStream,
			Subjects:   []string{cfg.TradeSubject + ".>"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     72 * time.Hour,
			Duplicates: 10 * time.Minute,
			Replicas:   1,
		},
	}

	for _, sc := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", sc.Name, err)
		}
		logger.Info().Str("stream", sc.Name).Msg("ensured stream")
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("energy-ledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
