package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, float64(50), cfg.MatchRadiusKm)
	assert.Equal(t, 24*time.Hour, cfg.DonationLeadTime)
	assert.Equal(t, 7*24*time.Hour, cfg.RequestTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LIFELINE_ADDR", ":9090")
	t.Setenv("MATCH_RADIUS_KM", "25.5")
	t.Setenv("DONATION_LEAD_TIME", "48h")
	t.Setenv("KAFKA_BROKERS", "localhost:9092,localhost:9093")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 25.5, cfg.MatchRadiusKm)
	assert.Equal(t, 48*time.Hour, cfg.DonationLeadTime)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.KafkaBrokers)
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("MATCH_RADIUS_KM", "not-a-number")
	t.Setenv("REQUEST_TTL", "soon")

	cfg := FromEnv()

	assert.Equal(t, float64(50), cfg.MatchRadiusKm)
	assert.Equal(t, 7*24*time.Hour, cfg.RequestTTL)
}
