package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration assembled from defaults, an optional
// config file and the environment.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the account/offer store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// NATSConfig configures trade export and meter/payment ingestion. An empty URL
// disables both.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	TradeStream    string `mapstructure:"trade_stream"`
	TradeSubject   string `mapstructure:"trade_subject"`
	IngestStream   string `mapstructure:"ingest_stream"`
	MeterSubject   string `mapstructure:"meter_subject"`
	PaymentSubject string `mapstructure:"payment_subject"`
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type LedgerConfig struct {
	Currency        string        `mapstructure:"currency"`
	DefaultOfferTTL time.Duration `mapstructure:"default_offer_ttl"`
	MaxOfferTTL     time.Duration `mapstructure:"max_offer_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	CarbonFactor    float64       `mapstructure:"carbon_factor"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var envBindings = map[string]string{
	"server.port":          "PORT",
	"store.driver":         "STORE_DRIVER",
	"database.host":        "DATABASE_HOST",
	"database.port":        "DATABASE_PORT",
	"database.user":        "DATABASE_USER",
	"database.password":    "DATABASE_PASSWORD",
	"database.name":        "DATABASE_NAME",
	"database.ssl_mode":    "DATABASE_SSL_MODE",
	"redis.host":           "REDIS_HOST",
	"redis.port":           "REDIS_PORT",
	"redis.password":       "REDIS_PASSWORD",
	"redis.db":             "REDIS_DB",
	"nats.url":             "NATS_URL",
	"jwt.secret_key":       "JWT_SECRET_KEY",
	"ledger.currency":      "LEDGER_CURRENCY",
	"ledger.carbon_factor": "LEDGER_CARBON_FACTOR",
	"log.level":            "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("store.driver", "postgres")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "energy_ledger")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.trade_stream", "ENERGY_TRADES")
	v.SetDefault("nats.trade_subject", "energy.trades")
	v.SetDefault("nats.ingest_stream", "ENERGY_INGEST")
	v.SetDefault("nats.meter_subject", "energy.meter.reports")
	v.SetDefault("nats.payment_subject", "energy.payments.confirmed")

	v.SetDefault("ledger.currency", "NGN")
	v.SetDefault("ledger.default_offer_ttl", 24*time.Hour)
	v.SetDefault("ledger.max_offer_ttl", 7*24*time.Hour)
	v.SetDefault("ledger.sweep_interval", 30*time.Second)
	v.SetDefault("ledger.carbon_factor", 0.475)

	v.SetDefault("log.level", "info")
}

// Load reads configuration. path may name a config file (.env, .yaml, ...);
// a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be memory or postgres", c.Store.Driver))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Ledger.DefaultOfferTTL <= 0 {
		errs = append(errs, errors.New("ledger.default_offer_ttl must be positive"))
	}
	if c.Ledger.MaxOfferTTL < c.Ledger.DefaultOfferTTL {
		errs = append(errs, errors.New("ledger.max_offer_ttl must be at least ledger.default_offer_ttl"))
	}
	if c.Ledger.SweepInterval <= 0 {
		errs = append(errs, errors.New("ledger.sweep_interval must be positive"))
	}
	if c.Ledger.CarbonFactor <= 0 {
		errs = append(errs, errors.New("ledger.carbon_factor must be positive"))
	}
	if c.NATS.URL != "" && (c.NATS.TradeSubject == "" || c.NATS.MeterSubject == "") {
		errs = append(errs, errors.New("nats subjects are required when nats.url is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
