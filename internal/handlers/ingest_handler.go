package handlers

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/ingestion"
)

// IngestHandler accepts meter reports and payment confirmations pushed over
// HTTP. Payloads use the same JSON format as the NATS subjects.
type IngestHandler struct {
	ingestor *ingestion.Ingestor
	log      zerolog.Logger
}

func NewIngestHandler(ingestor *ingestion.Ingestor, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, log: logger}
}

type ingestResponse struct {
	Key     string `json:"key"`
	Applied bool   `json:"applied"`
}

// MeterReport credits energy measured by a meter
// @Summary Ingest Meter Report
// @Description Credit exported energy to the producer's account. Redelivered reports are acknowledged without a second credit.
// @Tags Ingestion
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{report_id=string,meter_id=string,account_id=string,energy_kwh=string,timestamp_us=int} true "Meter report"
// @Success 200 {object} ingestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /ingest/meter [post]
func (h *IngestHandler) MeterReport(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, ingestion.KindMeterReport)
}

// PaymentConfirmed credits money confirmed by the payment provider
// @Summary Ingest Payment
// @Tags Ingestion
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{payment_ref=string,account_id=string,amount=string,currency=string,timestamp_us=int} true "Payment notice"
// @Success 200 {object} ingestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /ingest/payment [post]
func (h *IngestHandler) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, ingestion.KindPaymentConfirmed)
}

func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request, kind ingestion.EventKind) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	evt, err := h.ingestor.Parse(kind, data)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	applied, err := h.ingestor.Apply(r.Context(), evt)
	if err != nil {
		sendServiceError(w, h.log.With().Str("key", evt.DedupeKey()).Logger(), err)
		return
	}
	SendJSON(w, http.StatusOK, ingestResponse{Key: evt.DedupeKey(), Applied: applied})
}
