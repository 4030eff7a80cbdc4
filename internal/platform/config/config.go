package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// devSigningKey is only reachable when GARANT_ENV=dev is set explicitly.
const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN enables the postgres-backed stores when set; otherwise the
	// service runs on the in-memory stores.
	PostgresDSN string

	// RedisURL enables the redis receipt-metadata cache when set.
	RedisURL string

	// KafkaBrokers enables the kafka event sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// MetadataCacheTTL bounds staleness of cached receipt metadata.
	MetadataCacheTTL time.Duration
}

// FromEnv builds a Server config from environment variables. JWT_SIGNING_KEY
// is mandatory; the insecure dev key is used only under GARANT_ENV=dev.
func FromEnv() (Server, error) {
	addr := os.Getenv("GARANT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		if os.Getenv("GARANT_ENV") != "dev" {
			return Server{}, errors.New("JWT_SIGNING_KEY is required (set GARANT_ENV=dev to run with the insecure dev key)")
		}
		jwtSigningKey = devSigningKey
	}

	topic := os.Getenv("KAFKA_EVENTS_TOPIC")
	if topic == "" {
		topic = "garant.deposit-events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	ttl := 5 * time.Minute
	if raw := os.Getenv("METADATA_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}

	return Server{
		Addr:             addr,
		JWTSigningKey:    jwtSigningKey,
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     brokers,
		KafkaTopic:       topic,
		MetadataCacheTTL: ttl,
	}, nil
}
