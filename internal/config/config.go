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
	GeminiAPIKey  string
	TelegramToken string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	HTTPAddr       string
	DBPath         string
	JWTSecret      string
	AllowAnonymous bool

	RequestTimeout time.Duration
	GatewayTimeout time.Duration
	HTTPTimeout    time.Duration

	GeminiBaseURL    string
	GeminiAPIVersion string

	DefaultTier   string
	SignupCredits int

	// ChargeTerminalFailures keeps the credit charge when the capability
	// returned a terminal failure status. Gateway-level failures (timeout,
	// transport) always release the hold.
	ChargeTerminalFailures bool

	// ServiceCosts and ServiceTiers are the pricing/permission schedule,
	// e.g. SERVICE_COSTS="studio-shot:1,editorial-shot:2".
	ServiceCosts map[string]int
	ServiceTiers map[string]string

	MaxConcurrent      int
	MediaGroupDebounce time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:               strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:                  getEnvBool("DEBUG", false),
		PreferIPv4:             getEnvBool("PREFER_IPV4", true),
		HTTPAddr:               strings.TrimSpace(getEnv("HTTP_ADDR", ":8080")),
		DBPath:                 strings.TrimSpace(getEnv("DB_PATH", "atelier.db")),
		AllowAnonymous:         getEnvBool("ALLOW_ANONYMOUS", true),
		RequestTimeout:         time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		GatewayTimeout:         time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:            time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:          strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:       strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		DefaultTier:            strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_TIER", "trial"))),
		SignupCredits:          getEnvInt("SIGNUP_CREDITS", 3),
		ChargeTerminalFailures: getEnvBool("CHARGE_TERMINAL_FAILURES", true),
		MaxConcurrent:          getEnvInt("MAX_CONCURRENT", 4),
		MediaGroupDebounce:     time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	var err error
	cfg.ServiceCosts, err = getEnvIntMap("SERVICE_COSTS", map[string]int{
		"studio-shot":    1,
		"editorial-shot": 2,
	})
	if err != nil {
		return Config{}, fmt.Errorf("SERVICE_COSTS: %w", err)
	}

	cfg.ServiceTiers = getEnvMap("SERVICE_TIERS", map[string]string{
		"studio-shot":    "trial",
		"editorial-shot": "silver",
	})

	if cfg.SignupCredits < 0 {
		cfg.SignupCredits = 0
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvMap parses "key:value,key:value" env strings.
func getEnvMap(key string, fallback map[string]string) map[string]string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(parts[0]))
		v := strings.ToLower(strings.TrimSpace(parts[1]))
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvIntMap(key string, fallback map[string]int) (map[string]int, error) {
	raw := getEnvMap(key, nil)
	if raw == nil {
		return fallback, nil
	}

	out := make(map[string]int, len(raw))
	for k, v := range raw {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid cost %q for service %q", v, k)
		}
		out[k] = parsed
	}
	return out, nil
}
