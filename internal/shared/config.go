package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	RenderBase    string
	TargetBase    string
	RenderTimeout time.Duration
	RenderRPS     int

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64

	BatchDelay     time.Duration
	CacheTTL       time.Duration
	CommaIsDecimal bool

	// watcher sweep window: check-in WatchLeadDays from now, WatchNights long
	WatchLeadDays int
	WatchNights   int
	WatchGuests   int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	abool := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/pricewatch?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		RenderBase:    env("RENDER_BASE_URL", "http://localhost:3000"),
		TargetBase:    env("TARGET_BASE_URL", "https://www.booking-site.example/search"),
		RenderTimeout: time.Duration(atoi("RENDER_TIMEOUT_SECONDS", 30)) * time.Second,
		RenderRPS:     atoi("RENDER_RPS", 1),

		RetryMaxAttempts:  atoi("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: time.Duration(atoi("RETRY_INITIAL_DELAY_MS", 500)) * time.Millisecond,
		RetryMaxDelay:     time.Duration(atoi("RETRY_MAX_DELAY_MS", 10000)) * time.Millisecond,
		RetryMultiplier:   atof("RETRY_MULTIPLIER", 2.0),

		BatchDelay:     time.Duration(atoi("BATCH_DELAY_MS", 2000)) * time.Millisecond,
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		CommaIsDecimal: abool("COMMA_IS_DECIMAL", true),

		WatchLeadDays: atoi("WATCH_LEAD_DAYS", 30),
		WatchNights:   atoi("WATCH_NIGHTS", 1),
		WatchGuests:   atoi("WATCH_GUESTS", 2),
	}
	if c.RenderBase == "" {
		log.Warn().Msg("RENDER_BASE_URL is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
