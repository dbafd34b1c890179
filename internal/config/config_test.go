package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "DB_DRIVER", "KAFKA_BROKERS", "SUPPORT_INBOX_USER_ID", "ACCESS_TTL", "ES_ADDRS", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Zero(t, cfg.SupportInbox)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, "products", cfg.ESIndex)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SUPPORT_INBOX_USER_ID", "42")
	t.Setenv("ARCHIVE_LOCK_TTL", "5s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REQUEST_TIMEOUT", "2s")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint(42), cfg.SupportInbox)
	assert.Equal(t, 5*time.Second, cfg.ArchiveLockTTL)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
}
