package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	AutoMigrate bool

	Database    DatabaseConfig
	Redis       RedisConfig
	Session     SessionConfig
	Login       LoginConfig
	Security    SecurityConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	Papers      PapersConfig
	ActivityLog ActivityLogConfig
	Stats       StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig controls the server-side session lifecycle.
type SessionConfig struct {
	IdleTimeout  time.Duration
	CookieName   string
	CookieSecure bool
	KeyPrefix    string
}

// LoginConfig tunes the login-attempt throttle.
type LoginConfig struct {
	MaxAttempts    int
	LockoutWindow  time.Duration
	GracePeriod    time.Duration
	DefaultAdminPW string
}

// SecurityConfig bounds password hashing work.
type SecurityConfig struct {
	BcryptCost      int
	HashConcurrency int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where paper PDFs live.
type StorageConfig struct {
	Driver        string
	Dir           string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKeyID string
	S3SecretKey   string
	S3ForcePath   bool
	UploadTimeout time.Duration
}

// PapersConfig holds upload limits.
type PapersConfig struct {
	MaxFileSizeBytes int64
}

// ActivityLogConfig controls retention and the background writer.
type ActivityLogConfig struct {
	Retention     time.Duration
	PurgeInterval time.Duration
	Workers       int
	Retries       int
}

// StatsConfig governs cached statistics.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	Since        int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.AutoMigrate = v.GetBool("AUTO_MIGRATE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		IdleTimeout:  parseDuration(v.GetString("SESSION_IDLE_TIMEOUT"), 15*time.Minute),
		CookieName:   v.GetString("SESSION_COOKIE_NAME"),
		CookieSecure: v.GetBool("SESSION_COOKIE_SECURE"),
		KeyPrefix:    v.GetString("SESSION_KEY_PREFIX"),
	}

	cfg.Login = LoginConfig{
		MaxAttempts:    v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LockoutWindow:  parseDuration(v.GetString("LOGIN_LOCKOUT_WINDOW"), time.Minute),
		GracePeriod:    parseDuration(v.GetString("LOGIN_GRACE_PERIOD"), 10*time.Minute),
		DefaultAdminPW: v.GetString("DEFAULT_ADMIN_PASSWORD"),
	}

	cfg.Security = SecurityConfig{
		BcryptCost:      v.GetInt("BCRYPT_COST"),
		HashConcurrency: v.GetInt("HASH_CONCURRENCY"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:           v.GetString("STORAGE_DIR"),
		S3Bucket:      v.GetString("S3_BUCKET"),
		S3Region:      v.GetString("S3_REGION"),
		S3Endpoint:    v.GetString("S3_ENDPOINT"),
		S3AccessKeyID: v.GetString("S3_ACCESS_KEY_ID"),
		S3SecretKey:   v.GetString("S3_SECRET_ACCESS_KEY"),
		S3ForcePath:   v.GetBool("S3_FORCE_PATH_STYLE"),
		UploadTimeout: parseDuration(v.GetString("STORAGE_UPLOAD_TIMEOUT"), 2*time.Minute),
	}

	maxPaperSize := v.GetInt64("PAPER_MAX_FILE_SIZE")
	if maxPaperSize <= 0 {
		maxPaperSize = 50 * 1024 * 1024
	}
	cfg.Papers = PapersConfig{MaxFileSizeBytes: maxPaperSize}

	cfg.ActivityLog = ActivityLogConfig{
		Retention:     parseDuration(v.GetString("ACTIVITY_LOG_RETENTION"), 365*24*time.Hour),
		PurgeInterval: parseDuration(v.GetString("ACTIVITY_LOG_PURGE_INTERVAL"), time.Hour),
		Workers:       v.GetInt("AUDIT_WORKERS"),
		Retries:       v.GetInt("AUDIT_RETRIES"),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
		Since:        v.GetInt("LIBRARY_SINCE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("AUTO_MIGRATE", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "research_library")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_IDLE_TIMEOUT", "15m")
	v.SetDefault("SESSION_COOKIE_NAME", "sid")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_KEY_PREFIX", "session")

	v.SetDefault("LOGIN_MAX_ATTEMPTS", 3)
	v.SetDefault("LOGIN_LOCKOUT_WINDOW", "60s")
	v.SetDefault("LOGIN_GRACE_PERIOD", "10m")
	v.SetDefault("DEFAULT_ADMIN_PASSWORD", "admin")

	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("HASH_CONCURRENCY", 4)

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./research_papers")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_FORCE_PATH_STYLE", false)
	v.SetDefault("STORAGE_UPLOAD_TIMEOUT", "2m")
	v.SetDefault("PAPER_MAX_FILE_SIZE", 50*1024*1024)

	v.SetDefault("ACTIVITY_LOG_RETENTION", "8760h")
	v.SetDefault("ACTIVITY_LOG_PURGE_INTERVAL", "1h")
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("ENABLE_STATS_CACHE", true)
	v.SetDefault("STATS_CACHE_TTL", "5m")
	v.SetDefault("LIBRARY_SINCE", 2020)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
