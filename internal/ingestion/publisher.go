package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ruralpay/energyledger/internal/models"
)

// StreamPublisher is the publishing half of jetstream.JetStream.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// TradePublisher exports settled trades on {subject}.{offer_id}. The trade id
// is the JetStream message id, so a retried publish is deduplicated.
type TradePublisher struct {
	js      StreamPublisher
	subject string
}

func NewTradePublisher(js StreamPublisher, subject string) *TradePublisher {
	return &TradePublisher{js: js, subject: subject}
}

// TradeEvent is the exported wire form of a trade.
type TradeEvent struct {
	TradeID       string    `json:"trade_id"`
	OfferID       string    `json:"offer_id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	EnergyKWh     string    `json:"energy_kwh"`
	UnitPrice     string    `json:"unit_price"`
	TotalPrice    string    `json:"total_price"`
	CarbonSavedKg string    `json:"carbon_saved_kg"`
	ExecutedAt    time.Time `json:"executed_at"`
}

func NewTradeEvent(t *models.Trade) TradeEvent {
	return TradeEvent{
		TradeID:       t.ID,
		OfferID:       t.OfferID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		EnergyKWh:     t.Amount.String(),
		UnitPrice:     t.UnitPrice.StringFixed(2),
		TotalPrice:    t.TotalPrice.String(),
		CarbonSavedKg: t.CarbonSavedKg.String(),
		ExecutedAt:    t.ExecutedAt.UTC(),
	}
}

func (p *TradePublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	data, err := json.Marshal(NewTradeEvent(t))
	if err != nil {
		return fmt.Errorf("marshal trade %s: %w", t.ID, err)
	}

	subject := fmt.Sprintf("%s.%s", p.subject, t.OfferID)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(t.ID)); err != nil {
		return fmt.Errorf("publish trade %s: %w", t.ID, err)
	}
	return nil
}
