package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	DBDriver string
	DBDSN    string

	JWTSecret    string
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration

	WSInsecureSkipVerify bool
	WSOriginPatterns     []string
	WSRequireMembership  bool

	DedupeDirectConversations bool

	MessageRatePerSec float64
	MessageBurst      int

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		Port:     envInt("APP_PORT", 8084),
		DBDriver: envString("DB_DRIVER", "mysql"),
		DBDSN:    os.Getenv("DB_DSN"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		CookieName:   envString("SESSION_COOKIE_NAME", "session"),
		CookieSecure: envBool("COOKIE_SECURE", false),
		SessionTTL:   envDuration("SESSION_TTL", 7*24*time.Hour),

		WSInsecureSkipVerify: envBool("WS_INSECURE_SKIP_VERIFY", false),
		WSOriginPatterns:     envList("WS_ORIGIN_PATTERNS"),
		WSRequireMembership:  envBool("WS_REQUIRE_MEMBERSHIP", true),

		DedupeDirectConversations: envBool("DEDUPE_DIRECT_CONVERSATIONS", false),

		MessageRatePerSec: envFloat("MESSAGE_RATE_PER_SEC", 5),
		MessageBurst:      envInt("MESSAGE_BURST", 10),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),
	}
}

// Validate reports every problem at once so a bad .env is fixed in one pass.
func (c Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not supported", c.LogFormat))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.Port))
	}
	if c.MessageRatePerSec <= 0 || c.MessageBurst <= 0 {
		errs = append(errs, errors.New("MESSAGE_RATE_PER_SEC and MESSAGE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
