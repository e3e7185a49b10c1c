package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	mW "github.com/ruralpay/energyledger/internal/middleware"
	"github.com/ruralpay/energyledger/internal/observability"
)

// RouterConfig carries everything the HTTP surface is built from. Nil
// limiters disable rate limiting; a nil Metrics handler leaves /metrics out.
type RouterConfig struct {
	Accounts *AccountHandler
	Offers   *OfferHandler
	Trades   *TradeHandler
	QR       *QRHandler
	Ingest   *IngestHandler
	USSD     *USSDHandler

	Auth        *mW.Auth
	APILimiter  *mW.RateLimiter
	USSDLimiter *mW.RateLimiter

	Health     *observability.HealthChecker
	Metrics    http.Handler
	SwaggerURL string
	Logger     zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.LivenessHandler)
		r.Get("/ready", cfg.Health.ReadinessHandler)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.SwaggerURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(cfg.SwaggerURL)))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway callback; callers are identified by phone number.
		r.Group(func(r chi.Router) {
			if cfg.USSDLimiter != nil {
				r.Use(cfg.USSDLimiter.Handler)
			}
			r.Post("/ussd", cfg.USSD.Callback)
		})

		r.Group(func(r chi.Router) {
			if cfg.APILimiter != nil {
				r.Use(cfg.APILimiter.Handler)
			}

			// Public market data
			r.Get("/offers", cfg.Offers.ListOffers)
			r.Get("/offers/{id}", cfg.Offers.GetOffer)
			r.Get("/offers/{id}/qr", cfg.QR.OfferQR)
			r.Post("/qr/resolve", cfg.QR.ResolveQR)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Auth.Middleware)

				r.Post("/accounts", cfg.Accounts.CreateAccount)
				r.Get("/accounts", cfg.Accounts.ListAccounts)
				r.Get("/accounts/{id}", cfg.Accounts.GetAccount)
				r.Post("/accounts/{id}/deactivate", cfg.Accounts.Deactivate)
				r.Post("/accounts/{id}/reactivate", cfg.Accounts.Reactivate)
				r.Get("/accounts/{id}/entries", cfg.Accounts.ListEntries)
				r.Get("/accounts/{id}/trades", cfg.Accounts.ListTrades)
				r.Get("/accounts/{id}/carbon", cfg.Accounts.CarbonSaved)

				r.Post("/offers", cfg.Offers.CreateOffer)
				r.Delete("/offers/{id}", cfg.Offers.CancelOffer)

				r.Post("/trades", cfg.Trades.ExecuteTrade)
				r.Get("/trades", cfg.Trades.ListTrades)
				r.Get("/trades/{id}", cfg.Trades.GetTrade)

				r.Post("/ingest/meter", cfg.Ingest.MeterReport)
				r.Post("/ingest/payment", cfg.Ingest.PaymentConfirmed)
			})
		})
	})

	return r
}
