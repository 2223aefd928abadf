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
// built-in defaults, applies PETTYCOON_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PETTYCOON_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PETTYCOON_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PETTYCOON_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PETTYCOON_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PETTYCOON_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PETTYCOON_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PETTYCOON_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PETTYCOON_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PETTYCOON_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PETTYCOON_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PETTYCOON_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PETTYCOON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PETTYCOON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PETTYCOON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PETTYCOON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PETTYCOON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PETTYCOON_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PETTYCOON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PETTYCOON_S3_REGION")
	setStr(&cfg.S3.Bucket, "PETTYCOON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PETTYCOON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PETTYCOON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PETTYCOON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PETTYCOON_S3_FORCE_PATH_STYLE")

	// ── Game ──
	setDuration(&cfg.Game.TickInterval, "PETTYCOON_GAME_TICK_INTERVAL")
	setDuration(&cfg.Game.SaveInterval, "PETTYCOON_GAME_SAVE_INTERVAL")
	setDuration(&cfg.Game.SweepInterval, "PETTYCOON_GAME_SWEEP_INTERVAL")
	setInt(&cfg.Game.ArchiveRetentionDays, "PETTYCOON_GAME_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Game.ArchiveInterval, "PETTYCOON_GAME_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PETTYCOON_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PETTYCOON_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PETTYCOON_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PETTYCOON_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PETTYCOON_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PETTYCOON_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PETTYCOON_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PETTYCOON_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PETTYCOON_MODE")
	setStr(&cfg.LogLevel, "PETTYCOON_LOG_LEVEL")
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
