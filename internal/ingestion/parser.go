package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/models"
)

// EventKind names the payload carried on an ingestion subject.
type EventKind string

const (
	KindMeterReport      EventKind = "MeterReport"
	KindPaymentConfirmed EventKind = "PaymentConfirmed"
)

// Ledger is the part of the ledger engine ingestion credits through.
type Ledger interface {
	CreditEnergy(ctx context.Context, accountID string, kwh decimal.Decimal) error
	CreditMoney(ctx context.Context, accountID string, amount decimal.Decimal) error
}

// Event is a validated external fact that results in exactly one credit.
type Event interface {
	// DedupeKey identifies the fact across redeliveries.
	DedupeKey() string
	Kind() EventKind
	credit(ctx context.Context, l Ledger) error
}

// MeterReport is energy a smart meter measured as exported by a producer.
type MeterReport struct {
	ReportID  string
	MeterID   string
	AccountID string
	EnergyKWh decimal.Decimal
	ReadingAt time.Time
}

func (r *MeterReport) DedupeKey() string { return "meter:" + r.ReportID }
func (r *MeterReport) Kind() EventKind   { return KindMeterReport }

func (r *MeterReport) credit(ctx context.Context, l Ledger) error {
	return l.CreditEnergy(ctx, r.AccountID, r.EnergyKWh)
}

// PaymentNotice is a confirmed top-up from the payment provider.
type PaymentNotice struct {
	PaymentRef  string
	AccountID   string
	Amount      decimal.Decimal
	Currency    string
	ConfirmedAt time.Time
}

func (p *PaymentNotice) DedupeKey() string { return "payment:" + p.PaymentRef }
func (p *PaymentNotice) Kind() EventKind   { return KindPaymentConfirmed }

func (p *PaymentNotice) credit(ctx context.Context, l Ledger) error {
	return l.CreditMoney(ctx, p.AccountID, p.Amount)
}

// ParseEvent converts a raw payload of the given kind into a typed Event.
func ParseEvent(kind EventKind, data []byte) (Event, error) {
	var (
		evt Event
		err error
	)
	switch kind {
	case KindMeterReport:
		var r *MeterReport
		r, err = ParseMeterReport(data)
		evt = r
	case KindPaymentConfirmed:
		var p *PaymentNotice
		p, err = ParsePaymentNotice(data)
		evt = p
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// --- JSON wire formats ---
// Quantities are decimal strings or numbers; timestamps are microseconds.

type meterReportJSON struct {
	ReportID    string          `json:"report_id"`
	MeterID     string          `json:"meter_id"`
	AccountID   string          `json:"account_id"`
	EnergyKWh   decimal.Decimal `json:"energy_kwh"`
	TimestampUs int64           `json:"timestamp_us"`
}

func ParseMeterReport(data []byte) (*MeterReport, error) {
	var j meterReportJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MeterReport: %w", err)
	}

	if strings.TrimSpace(j.ReportID) == "" {
		return nil, fmt.Errorf("parse MeterReport: report_id is required")
	}
	if strings.TrimSpace(j.AccountID) == "" {
		return nil, fmt.Errorf("parse MeterReport: account_id is required")
	}
	if err := models.ValidateEnergy(j.EnergyKWh); err != nil {
		return nil, fmt.Errorf("parse MeterReport: energy_kwh %s: %w", j.EnergyKWh, err)
	}

	return &MeterReport{
		ReportID:  j.ReportID,
		MeterID:   j.MeterID,
		AccountID: strings.TrimSpace(j.AccountID),
		EnergyKWh: j.EnergyKWh,
		ReadingAt: fromMicros(j.TimestampUs),
	}, nil
}

type paymentNoticeJSON struct {
	PaymentRef  string          `json:"payment_ref"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	TimestampUs int64           `json:"timestamp_us"`
}

func ParsePaymentNotice(data []byte) (*PaymentNotice, error) {
	var j paymentNoticeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PaymentNotice: %w", err)
	}

	if strings.TrimSpace(j.PaymentRef) == "" {
		return nil, fmt.Errorf("parse PaymentNotice: payment_ref is required")
	}
	if strings.TrimSpace(j.AccountID) == "" {
		return nil, fmt.Errorf("parse PaymentNotice: account_id is required")
	}
	if err := models.ValidateMoney(j.Amount); err != nil {
		return nil, fmt.Errorf("parse PaymentNotice: amount %s: %w", j.Amount, err)
	}

	return &PaymentNotice{
		PaymentRef:  j.PaymentRef,
		AccountID:   strings.TrimSpace(j.AccountID),
		Amount:      j.Amount,
		Currency:    strings.ToUpper(j.Currency),
		ConfirmedAt: fromMicros(j.TimestampUs),
	}, nil
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}
