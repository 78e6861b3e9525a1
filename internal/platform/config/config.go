// Package config reads service configuration from the environment so main
// stays lean. Matching policy values (radius, lead time, TTL) live here
// because they are deployment policy, not domain law.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server binary needs at startup.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN selects the SQL-backed stores when set; empty falls back
	// to the in-memory stores.
	PostgresDSN string

	// RedisURL enables Redis-backed donor presence when set.
	RedisURL string

	// KafkaBrokers enables the Kafka notification sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// MatchRadiusKm bounds how far from the request location donors are
	// matched.
	MatchRadiusKm float64

	// DonationLeadTime is the offset from acceptance to the scheduled
	// donation date.
	DonationLeadTime time.Duration

	// RequestTTL is how long a request stays open before natural expiry.
	RequestTTL time.Duration

	// SweepInterval is how often the background expiry sweep runs.
	SweepInterval time.Duration
}

// FromEnv builds a Config from environment variables, applying development
// defaults for anything unset.
func FromEnv() Config {
	cfg := Config{
		Addr:             getEnv("LIFELINE_ADDR", ":8080"),
		JWTSigningKey:    getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "lifeline.events"),
		MatchRadiusKm:    getEnvFloat("MATCH_RADIUS_KM", 50),
		DonationLeadTime: getEnvDuration("DONATION_LEAD_TIME", 24*time.Hour),
		RequestTTL:       getEnvDuration("REQUEST_TTL", 7*24*time.Hour),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Minute),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
