package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ruralpay/energyledger/internal/config"
	"github.com/ruralpay/energyledger/internal/models"
)

type settlement struct {
	acked, naked, termed int
}

func (s *settlement) raw(kind EventKind, data string) RawEvent {
	return RawEvent{
		Subject:  "energy.meter.reports.SM-1",
		Kind:     kind,
		Data:     []byte(data),
		AckFunc:  func() { s.acked++ },
		NakFunc:  func() { s.naked++ },
		TermFunc: func() { s.termed++ },
	}
}

func TestSubscriber_Process(t *testing.T) {
	const payload = `{"report_id":"r-1","account_id":"house-7","energy_kwh":"1.5"}`

	tests := []struct {
		name      string
		data      string
		ledgerErr error
		want      settlement
	}{
		{"applied is acked", payload, nil, settlement{acked: 1}},
		{"malformed is terminated", `{"report_id":`, nil, settlement{termed: 1}},
		{"ledger rejection is terminated", payload, models.ErrNotFound, settlement{termed: 1}},
		{"storage fault is redelivered", payload, models.ErrStoreUnavailable, settlement{naked: 1}},
		{"unknown fault is redelivered", payload, errors.New("boom"), settlement{naked: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(MockLedger)
			ledger.On("CreditEnergy", mock.Anything, "house-7", decimal.RequireFromString("1.5")).Return(tt.ledgerErr).Maybe()
			sub := NewSubscriber(nil, NewIngestor(ledger), zerolog.Nop())

			var got settlement
			sub.Process(context.Background(), got.raw(KindMeterReport, tt.data))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultSubjects(t *testing.T) {
	cfg := config.NATSConfig{
		IngestStream:   "ENERGY_INGEST",
		MeterSubject:   "energy.meter.reports",
		PaymentSubject: "energy.payments.confirmed",
	}

	subjects := DefaultSubjects(cfg)
	assert.Len(t, subjects, 2)
	assert.Equal(t, "energy.meter.reports.>", subjects[0].Subject)
	assert.Equal(t, KindMeterReport, subjects[0].Kind)
	assert.Equal(t, KindPaymentConfirmed, subjects[1].Kind)

	cfg.PaymentSubject = ""
	assert.Len(t, DefaultSubjects(cfg), 1)
}
