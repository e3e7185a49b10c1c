package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ruralpay/energyledger/internal/services"
)

type USSDHandler struct {
	service *services.USSDService
	log     zerolog.Logger
}

func NewUSSDHandler(service *services.USSDService, logger zerolog.Logger) *USSDHandler {
	return &USSDHandler{service: service, log: logger}
}

// Callback answers a USSD gateway request
// @Summary USSD Callback
// @Description Gateway callback for the feature-phone menu. Replies start with CON to continue the session or END to close it.
// @Tags USSD
// @Accept x-www-form-urlencoded
// @Produce plain
// @Param sessionId formData string true "Gateway session"
// @Param phoneNumber formData string true "Caller MSISDN"
// @Param text formData string false "Inputs so far, joined with *"
// @Success 200 {string} string
// @Failure 400 {string} string
// @Router /ussd [post]
func (h *USSDHandler) Callback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	sessionID := r.PostFormValue("sessionId")
	phone := r.PostFormValue("phoneNumber")
	if sessionID == "" || phone == "" {
		http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
		return
	}

	resp := h.service.Handle(r.Context(), sessionID, phone, r.PostFormValue("text"))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(resp))
}

// LimitedReply is the rate limiter response for USSD callers.
func LimitedReply(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("END Too many requests. Please try again later."))
}
