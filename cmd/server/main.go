package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/docs"
	"github.com/ruralpay/energyledger/internal/audit"
	"github.com/ruralpay/energyledger/internal/config"
	"github.com/ruralpay/energyledger/internal/database"
	"github.com/ruralpay/energyledger/internal/handlers"
	"github.com/ruralpay/energyledger/internal/ingestion"
	mW "github.com/ruralpay/energyledger/internal/middleware"
	"github.com/ruralpay/energyledger/internal/observability"
	"github.com/ruralpay/energyledger/internal/services"
	"github.com/ruralpay/energyledger/internal/store"
	"github.com/ruralpay/energyledger/internal/store/memory"
	"github.com/ruralpay/energyledger/internal/store/postgres"
)

// @title Energy Ledger API
// @version 1.0
// @description Peer-to-peer energy trading ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	configPath := flag.String("config", ".env", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := observability.NewLogger("energyledger", "info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := observability.NewLogger("energyledger", cfg.Log.Level)
	logger.Info().Str("store", cfg.Store.Driver).Str("currency", cfg.Ledger.Currency).Msg("starting energy ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := observability.NewHealthChecker()
	metrics := observability.NewMetrics()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()
	health.Register("store", st.Ping)

	redisClient := database.InitRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
		health.Register("redis", database.PingRedis(redisClient))
	}

	opts := []services.Option{
		services.WithLogger(logger.With().Str("component", "ledger").Logger()),
		services.WithMetrics(metrics),
		services.WithAuditLogger(audit.NewLogger(logger)),
	}

	// Trade export and meter ingestion over JetStream are optional.
	var (
		nc *nats.Conn
		js jetstream.JetStream
	)
	if cfg.NATS.URL != "" {
		nc, js, err = ingestion.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Drain()

		if err := ingestion.EnsureStreams(ctx, js, cfg.NATS, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to create streams")
		}
		opts = append(opts, services.WithTradePublisher(ingestion.NewTradePublisher(js, cfg.NATS.TradeSubject)))
		health.Register("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		})
	}

	ledger := services.NewLedgerService(st, opts...)
	accounts := services.NewAccountService(st, ledger)
	offers := services.NewOfferService(st, ledger, services.OfferConfig{
		DefaultTTL:    cfg.Ledger.DefaultOfferTTL,
		MaxTTL:        cfg.Ledger.MaxOfferTTL,
		SweepInterval: cfg.Ledger.SweepInterval,
	}, opts...)
	carbon := services.NewCarbonCalculator(decimal.NewFromFloat(cfg.Ledger.CarbonFactor))
	trades := services.NewTradeService(st, ledger, offers, carbon, opts...)

	ingestor := ingestion.NewIngestor(ledger,
		ingestion.WithDedupe(redisClient, 72*time.Hour),
		ingestion.WithCurrency(cfg.Ledger.Currency),
		ingestion.WithIngestMetrics(metrics),
		ingestion.WithIngestLogger(logger.With().Str("component", "ingest").Logger()),
	)

	if js != nil {
		subscriber := ingestion.NewSubscriber(js, ingestor, logger)
		if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects(cfg.NATS)); err != nil {
			logger.Fatal().Err(err).Msg("failed to subscribe to ingestion subjects")
		}
		defer subscriber.Stop()
	}

	offers.Start(ctx)
	defer offers.Stop()

	ussdCfg := config.LoadUSSDConfig()
	ussdService := services.NewUSSDService(accounts, offers, trades, redisClient, ussdCfg, logger.With().Str("component", "ussd").Logger())
	qrService := services.NewQRService(offers, redisClient, logger)

	apiLimiter := mW.NewRateLimiter(redisClient, "api", 600, time.Minute, mW.ByRemoteIP, mW.WithRateLimitLogger(logger))
	ussdLimiter := mW.NewRateLimiter(redisClient, "ussd", ussdCfg.MaxRequests, ussdCfg.RateLimitWindow,
		mW.ByFormValue("phoneNumber"), mW.WithLimitedHandler(handlers.LimitedReply), mW.WithRateLimitLogger(logger))

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	router := handlers.NewRouter(handlers.RouterConfig{
		Accounts: handlers.NewAccountHandler(accounts, trades, logger),
		Offers:   handlers.NewOfferHandler(offers, logger),
		Trades:   handlers.NewTradeHandler(trades, logger),
		QR:       handlers.NewQRHandler(qrService, logger),
		Ingest:   handlers.NewIngestHandler(ingestor, logger),
		USSD:     handlers.NewUSSDHandler(ussdService, logger),

		Auth:        mW.NewAuth(cfg.JWT.SecretKey),
		APILimiter:  apiLimiter,
		USSDLimiter: ussdLimiter,

		Health:     health,
		Metrics:    promhttp.Handler(),
		SwaggerURL: fmt.Sprintf("http://localhost:%s/swagger/doc.json", cfg.Server.Port),
		Logger:     logger.With().Str("component", "http").Logger(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()
	health.SetReady(true)

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory store; balances are lost on restart")
		return memory.New(), func() {}, nil
	case "postgres":
		db, err := database.InitDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		pg := postgres.New(db, logger.With().Str("component", "postgres").Logger())
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
