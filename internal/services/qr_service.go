package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/ruralpay/energyledger/internal/models"
)

const offerLinkPrefix = "energyledger://offer/"

// OfferQR is a shareable code for an open offer.
type OfferQR struct {
	OfferID string    `json:"offerId"`
	Link    string    `json:"link"`
	Image   string    `json:"qrImage"` // base64 PNG
	Expires time.Time `json:"expiresAt"`
}

// QRService renders offer share codes and resolves scanned ones. Rendered
// images are cached in Redis until the offer expires.
type QRService struct {
	offers *OfferService
	redis  *redis.Client
	size   int
	log    zerolog.Logger
}

func NewQRService(offers *OfferService, rdb *redis.Client, logger zerolog.Logger) *QRService {
	return &QRService{
		offers: offers,
		redis:  rdb,
		size:   256,
		log:    logger,
	}
}

func OfferLink(offerID string) string {
	return offerLinkPrefix + offerID
}

// GenerateOfferQR returns a QR code for an offer that can still be bought.
func (s *QRService) GenerateOfferQR(ctx context.Context, offerID string) (*OfferQR, error) {
	o, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Open() {
		return nil, fmt.Errorf("offer %s is %s: %w", offerID, o.Status, models.ErrInvalidState)
	}

	key := fmt.Sprintf("qr:offer:%s", offerID)
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			var cached OfferQR
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			s.log.Warn().Err(err).Str("offer_id", offerID).Msg("qr cache read failed")
		}
	}

	link := OfferLink(offerID)
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	result := &OfferQR{
		OfferID: offerID,
		Link:    link,
		Image:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Expires: o.ExpiresAt,
	}

	if s.redis != nil {
		if ttl := o.ExpiresAt.Sub(s.offers.now()); ttl > 0 {
			data, _ := json.Marshal(result)
			if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
				s.log.Warn().Err(err).Str("offer_id", offerID).Msg("qr cache write failed")
			}
		}
	}
	return result, nil
}

// ResolveQR maps a scanned link back to the current state of its offer.
func (s *QRService) ResolveQR(ctx context.Context, link string) (*models.Offer, error) {
	offerID, ok := strings.CutPrefix(strings.TrimSpace(link), offerLinkPrefix)
	if !ok || offerID == "" || strings.Contains(offerID, "/") {
		return nil, fmt.Errorf("unrecognised qr payload: %w", models.ErrInvalidAmount)
	}
	return s.offers.GetOffer(ctx, offerID)
}
