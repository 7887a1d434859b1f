package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "relationd.proof.linked", cfg.KafkaTopic)
	assert.Equal(t, "https://keybase.io", cfg.KeybaseURL)
	assert.Equal(t, 10*time.Minute, cfg.FetchCooldown)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RELATIOND_ADDR", ":9090")
	t.Setenv("RELATIOND_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("RELATIOND_FETCH_COOLDOWN", "5m")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.FetchCooldown)
}

func TestFromEnvBadDurationFallsBack(t *testing.T) {
	t.Setenv("RELATIOND_FETCH_LOCK_TTL", "soon")
	cfg := FromEnv()
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}
