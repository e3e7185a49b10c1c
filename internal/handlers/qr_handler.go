package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	validator *ValidationHelper
	log       zerolog.Logger
}

func NewQRHandler(service *services.QRService, logger zerolog.Logger) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: NewValidationHelper(),
		log:       logger,
	}
}

// OfferQR renders a share code for an open offer
// @Summary Offer QR Code
// @Description PNG QR code (base64) linking to an offer that can still be bought
// @Tags QR
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} services.OfferQR
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /offers/{id}/qr [get]
func (h *QRHandler) OfferQR(w http.ResponseWriter, r *http.Request) {
	qr, err := h.service.GenerateOfferQR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, qr)
}

// ResolveQR looks up the offer behind a scanned code
// @Summary Resolve QR Code
// @Description Process scanned QR data and return the offer it points to
// @Tags QR
// @Accept json
// @Produce json
// @Param request body object{qrData=string} true "Scanned payload"
// @Success 200 {object} models.Offer
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /qr/resolve [post]
func (h *QRHandler) ResolveQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}
	if !h.validator.decodeRequest(w, r, &req) {
		return
	}

	offer, err := h.service.ResolveQR(r.Context(), req.QRData)
	if err != nil {
		sendServiceError(w, h.log, err)
		return
	}
	SendJSON(w, http.StatusOK, offer)
}
