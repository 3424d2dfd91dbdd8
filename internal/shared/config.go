package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv          string
	LogLevel        string
	HTTPAddr        string
	HTTPTimeout     time.Duration
	MetricsAddr     string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	FeedBase        string
	FeedKey         string
	StatsBase       string
	StatsKey        string
	StatsRPS        int
	AnthropicKey    string
	AnthropicModel  string
	LLMMaxTokens    int
	ProviderTimeout time.Duration
	ImportWorkers   int
	ImportPages     int
	ImporterID      string
	CacheTTL        time.Duration
	NotifyChannel   string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", "info"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		HTTPTimeout:     time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/propvalue?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		RedisDB:         atoi("REDIS_DB", 0),
		RedisPass:       env("REDIS_PASSWORD", ""),
		FeedBase:        env("FEED_BASE_URL", "https://feeds.propvalue.co.uk/v1"),
		FeedKey:         env("FEED_API_KEY", ""),
		StatsBase:       env("STATS_BASE_URL", "https://api.propertydata.co.uk"),
		StatsKey:        env("STATS_API_KEY", ""),
		StatsRPS:        atoi("STATS_RPS", 5),
		AnthropicKey:    env("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  env("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		LLMMaxTokens:    atoi("LLM_MAX_TOKENS", 1024),
		ProviderTimeout: time.Duration(atoi("PROVIDER_TIMEOUT_SECONDS", 20)) * time.Second,
		ImportWorkers:   atoi("IMPORT_WORKERS", 8),
		ImportPages:     atoi("IMPORT_PAGES", 10),
		ImporterID:      env("IMPORTER_ID", "feed"),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		NotifyChannel:   env("NOTIFY_CHANNEL", "propvalue:reports"),
	}
	if c.StatsKey == "" {
		log.Warn().Msg("STATS_API_KEY is empty")
	}
	if c.AnthropicKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY is empty")
	}
	if c.HTTPTimeout <= c.ProviderTimeout {
		log.Warn().Dur("http_timeout", c.HTTPTimeout).Dur("provider_timeout", c.ProviderTimeout).
			Msg("HTTP timeout should exceed provider timeout")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
