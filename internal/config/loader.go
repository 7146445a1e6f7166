package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DUTCHMINT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DUTCHMINT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DUTCHMINT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DUTCHMINT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DUTCHMINT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DUTCHMINT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DUTCHMINT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DUTCHMINT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DUTCHMINT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DUTCHMINT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DUTCHMINT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DUTCHMINT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DUTCHMINT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DUTCHMINT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DUTCHMINT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DUTCHMINT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DUTCHMINT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DUTCHMINT_REDIS_TLS_ENABLED")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "DUTCHMINT_CHAIN_RPC_URL")
	setStringSlice(&cfg.Chain.AdminAddresses, "DUTCHMINT_CHAIN_ADMIN_ADDRESSES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DUTCHMINT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DUTCHMINT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DUTCHMINT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DUTCHMINT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DUTCHMINT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DUTCHMINT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DUTCHMINT_S3_FORCE_PATH_STYLE")

	// ── Mint ──
	setDuration(&cfg.Mint.LockTTL, "DUTCHMINT_MINT_LOCK_TTL")
	setDuration(&cfg.Mint.CacheTTL, "DUTCHMINT_MINT_CACHE_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DUTCHMINT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "DUTCHMINT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "DUTCHMINT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchSize, "DUTCHMINT_ARCHIVE_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DUTCHMINT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DUTCHMINT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DUTCHMINT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DUTCHMINT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DUTCHMINT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DUTCHMINT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DUTCHMINT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DUTCHMINT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DUTCHMINT_MODE")
	setStr(&cfg.LogLevel, "DUTCHMINT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
