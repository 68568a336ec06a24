package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fern-api", cfg.AppName)
	assert.Equal(t, 3004, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "serializable", cfg.DatabaseMergeIsolation)
	assert.Equal(t, 5*time.Minute, cfg.DatabaseConnMaxLifetime)
	assert.Equal(t, 168*time.Hour, cfg.MergeRecordTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 60.0, cfg.MatchMinScore)
	assert.Equal(t, 0.5, cfg.MatchMinConfidence)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MERGE_RECORD_TTL", "1h")
	t.Setenv("MATCH_MIN_SCORE", "75")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Hour, cfg.MergeRecordTTL)
	assert.Equal(t, 75.0, cfg.MatchMinScore)
	assert.True(t, cfg.RedisEnabled)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseDriver:   "postgres",
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseUserName: "fern",
		DatabasePassword: "p@ss",
		DatabaseName:     "fern",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "postgres://fern:p%40ss@db:5432/fern?sslmode=disable", cfg.DatabaseDSN())

	cfg = &Config{DatabaseDriver: "sqlite3", DatabaseName: "/tmp/fern.db"}
	assert.Equal(t, "file:/tmp/fern.db?_foreign_keys=on&_busy_timeout=5000", cfg.DatabaseDSN())
}
