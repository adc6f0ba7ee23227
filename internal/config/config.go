package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load, NewFeedCatalogHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthJWTSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Settlement SettlementConfig
	Handler    HandlerConfig
	Oracle     OracleConfig
	RateLimit  RateLimitConfig
}

// SettlementConfig describes the fungible currency payments are made in.
type SettlementConfig struct {
	Symbol          string
	Decimals        int32
	TreasuryAddress string
	GenesisSupply   string
}

// HandlerConfig seeds the handler settings on first start.
type HandlerConfig struct {
	Address                     string
	OwnerAddress                string
	InitialFeed                 string
	InitialPaymentAmount        string
	InitialSubscriptionDuration int64
	PaymentLockTTL              time.Duration
}

type OracleConfig struct {
	FeedsConfigPath string
	MaxRateAge      time.Duration
	BinanceBaseURL  string
}

// RateLimitConfig throttles transfer submissions per caller. A zero rate disables it.
type RateLimitConfig struct {
	TransferRate  float64
	TransferBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "subscriber"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Settlement: SettlementConfig{
			Symbol:          strings.ToUpper(getenv("SETTLEMENT_SYMBOL", "LINK")),
			Decimals:        int32(getenvInt("SETTLEMENT_DECIMALS", 18)),
			TreasuryAddress: getenv("TREASURY_ADDRESS", "treasury"),
			GenesisSupply:   getenv("GENESIS_SUPPLY", "1000000000000000000000000000"),
		},
		Handler: HandlerConfig{
			Address:                     getenv("HANDLER_ADDRESS", "handler"),
			OwnerAddress:                getenv("OWNER_ADDRESS", "maintainer"),
			InitialFeed:                 strings.TrimSpace(getenv("INITIAL_FEED", "")),
			InitialPaymentAmount:        getenv("INITIAL_PAYMENT_AMOUNT", "100000000"),
			InitialSubscriptionDuration: getenvInt64("INITIAL_SUBSCRIPTION_DURATION", 30*24*60*60),
			PaymentLockTTL:              getenvDuration("PAYMENT_LOCK_TTL", 30*time.Second),
		},
		Oracle: OracleConfig{
			FeedsConfigPath: strings.TrimSpace(getenv("FEEDS_CONFIG_PATH", "")),
			MaxRateAge:      getenvDuration("ORACLE_MAX_RATE_AGE", 0),
			BinanceBaseURL:  strings.TrimSpace(getenv("BINANCE_BASE_URL", "")),
		},
		RateLimit: RateLimitConfig{
			TransferRate:  getenvFloat("TRANSFER_RATE_LIMIT", 0),
			TransferBurst: getenvInt("TRANSFER_RATE_BURST", 5),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
