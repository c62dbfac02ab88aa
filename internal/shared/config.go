package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv           string
	LogLevel         string
	HTTPAddr         string
	MetricsAddr      string
	StoreDriver      string // mysql|bolt
	MySQLDSN         string
	BoltPath         string
	RedisAddr        string
	RedisDB          int
	RedisPass        string
	CacheTTL         time.Duration
	PaystackBase     string
	PaystackSecret   string
	PaystackRPS      int
	GatewayTimeout   time.Duration
	FrontendURL      string
	TaxRate          float64
	ReconcileWorkers int
}

// CallbackURL is where the gateway sends the payer after checkout.
func (c Config) CallbackURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/payment/verify"
}

// Load reads the environment; a .env file in the working directory is
// applied first when present and never overrides real variables.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer config value")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric config value")
		}
		return def
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		LogLevel:         env("LOG_LEVEL", "info"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ""),
		StoreDriver:      strings.ToLower(env("STORE_DRIVER", "mysql")),
		MySQLDSN:         env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayhub?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		BoltPath:         env("BOLT_PATH", "stayhub.db"),
		RedisAddr:        env("REDIS_ADDR", ""),
		RedisPass:        env("REDIS_PASSWORD", ""),
		RedisDB:          atoi("REDIS_DB", 0),
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		PaystackBase:     env("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackSecret:   env("PAYSTACK_SECRET_KEY", ""),
		PaystackRPS:      atoi("PAYSTACK_RPS", 10),
		GatewayTimeout:   time.Duration(atoi("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
		FrontendURL:      env("FRONTEND_URL", "http://localhost:5174"),
		TaxRate:          atof("TAX_RATE", 7.5),
		ReconcileWorkers: atoi("RECONCILE_WORKERS", 4),
	}
	if c.PaystackSecret == "" {
		log.Warn().Msg("PAYSTACK_SECRET_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
