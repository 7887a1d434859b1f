package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	KeybaseURL    string
	SybilListURL  string
	FetchCooldown time.Duration
	LockTTL       time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("RELATIOND_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("RELATIOND_POSTGRES_DSN"),
		RedisURL:      os.Getenv("RELATIOND_REDIS_URL"),
		KafkaTopic:    envOr("RELATIOND_KAFKA_TOPIC", "relationd.proof.linked"),
		JWTSigningKey: os.Getenv("RELATIOND_JWT_SIGNING_KEY"),
		KeybaseURL:    envOr("RELATIOND_KEYBASE_URL", "https://keybase.io"),
		SybilListURL:  os.Getenv("RELATIOND_SYBIL_LIST_URL"),
		FetchCooldown: durationOr("RELATIOND_FETCH_COOLDOWN", 10*time.Minute),
		LockTTL:       durationOr("RELATIOND_FETCH_LOCK_TTL", 30*time.Second),
	}
	if brokers := os.Getenv("RELATIOND_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
