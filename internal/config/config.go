// Package config assembles the server configuration from the environment.
package config

import (
	"time"

	"github.com/Skotchmaster/marketfeed/pkg/config"
	"github.com/Skotchmaster/marketfeed/pkg/db"
)

type Config struct {
	Port           string
	DBDriver       string
	DatabaseURL    string
	AutoMigrate    bool
	JWTSecret      []byte
	AccessTTL      time.Duration
	CookieSecure   bool
	LogLevel       string
	PrimaryAdmin   string
	SupportInbox   uint
	SettingsTTL    time.Duration
	NotifyBuffer   int
	NotifyKeep     time.Duration
	RequestTimeout time.Duration

	ArchivePath    string
	ArchiveLockTTL time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	KafkaBrokers     []string
	KafkaNotifyTopic string
	KafkaBackupTopic string

	BackupDir  string
	BackupCron string

	ESAddrs    []string
	ESUsername string
	ESPassword string
	ESIndex    string
}

func Load() Config {
	return Config{
		Port:           config.EnvDefault("SERVER_PORT", "8080"),
		DBDriver:       config.EnvDefault("DB_DRIVER", db.DriverPostgres),
		DatabaseURL:    config.EnvDefault("DATABASE_URL", ""),
		AutoMigrate:    config.EnvBoolDefault("DB_AUTO_MIGRATE", false),
		JWTSecret:      []byte(config.EnvDefault("JWT_SECRET", "")),
		AccessTTL:      config.EnvDurationDefault("ACCESS_TTL", 24*time.Hour),
		CookieSecure:   config.EnvBoolDefault("COOKIE_SECURE", false),
		LogLevel:       config.EnvDefault("LOG_LEVEL", "info"),
		PrimaryAdmin:   config.EnvDefault("PRIMARY_ADMIN_EMAIL", ""),
		SupportInbox:   uint(config.EnvInt64Default("SUPPORT_INBOX_USER_ID", 0)),
		SettingsTTL:    config.EnvDurationDefault("SETTINGS_CACHE_TTL", 30*time.Second),
		NotifyBuffer:   config.EnvIntDefault("NOTIFY_BUFFER", 256),
		NotifyKeep:     config.EnvDurationDefault("NOTIFICATION_RETENTION", 0),
		RequestTimeout: config.EnvDurationDefault("REQUEST_TIMEOUT", 15*time.Second),

		ArchivePath:    config.EnvDefault("ARCHIVE_PATH", "data/archive.json"),
		ArchiveLockTTL: config.EnvDurationDefault("ARCHIVE_LOCK_TTL", 30*time.Second),
		RedisAddr:      config.EnvDefault("REDIS_ADDR", ""),
		RedisPassword:  config.EnvDefault("REDIS_PASSWORD", ""),
		RedisDB:        config.EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers:     config.CSV(config.EnvDefault("KAFKA_BROKERS", "")),
		KafkaNotifyTopic: config.EnvDefault("KAFKA_NOTIFY_TOPIC", "marketfeed.notifications"),
		KafkaBackupTopic: config.EnvDefault("KAFKA_BACKUP_TOPIC", "marketfeed.backups"),

		BackupDir:  config.EnvDefault("BACKUP_DIR", "data/backups"),
		BackupCron: config.EnvDefault("BACKUP_CRON", ""),

		ESAddrs:    config.CSV(config.EnvDefault("ES_ADDRS", "")),
		ESUsername: config.EnvDefault("ES_USERNAME", ""),
		ESPassword: config.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    config.EnvDefault("ES_INDEX", "products"),
	}
}

// MustLoad is Load plus the fatal checks for settings the server cannot run
// without.
func MustLoad() Config {
	cfg := Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	return cfg
}
