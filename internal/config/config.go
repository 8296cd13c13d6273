package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string

	ServerPort int
	LogLevel   string

	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	CookieSecure     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI        string
	MongoDB         string
	CartSnapshotTTL time.Duration

	KafkaBrokers []string

	Cart CartConfig

	GuardEnforceProtected bool
	DebugEndpoints        bool
	CSRFEnabled           bool
}

// CartConfig holds the pricing rules applied to every cart quote.
// Amounts are minor currency units.
type CartConfig struct {
	Currency         string
	TaxRateBps       int
	ShippingFlat     int64
	FreeShippingFrom int64
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		CookieSecure:     EnvBoolDefault("COOKIE_SECURE", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         EnvDefault("MONGO_DB", "storefront"),
		CartSnapshotTTL: time.Duration(EnvIntDefault("CART_SNAPSHOT_TTL_HOURS", 720)) * time.Hour,

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		Cart: CartConfig{
			Currency:         strings.ToUpper(EnvDefault("CART_CURRENCY", "USD")),
			TaxRateBps:       EnvIntDefault("CART_TAX_RATE_BPS", 0),
			ShippingFlat:     int64(EnvIntDefault("CART_SHIPPING_FLAT", 0)),
			FreeShippingFrom: int64(EnvIntDefault("CART_FREE_SHIPPING_FROM", 0)),
		},

		GuardEnforceProtected: EnvBoolDefault("GUARD_ENFORCE_PROTECTED", false),
		DebugEndpoints:        EnvBoolDefault("DEBUG_ENDPOINTS", false),
		CSRFEnabled:           EnvBoolDefault("CSRF_ENABLED", false),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
