package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// MinBcryptCost is the weakest hash cost accepted in any environment.
// Weaker factors are rejected at load time rather than silently producing
// cheap hashes.
const MinBcryptCost = 10

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Uploads   UploadConfig
	Summaries SummaryConfig
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

// AuthConfig carries token secrets, lifetimes and hash cost for the
// credential service.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	SessionExpiry      time.Duration
	RememberMeExpiry   time.Duration
	VerifyTokenExpiry  time.Duration
	ResetTokenExpiry   time.Duration
	BcryptCost         int
	Issuer             string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures the outbound SMTP transport and its worker pool.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
	Workers  int
	Retries  int
}

// RateLimitConfig bounds requests per client per window. Auth endpoints get
// their own tighter ceiling.
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	Ceiling     int
	AuthCeiling int
}

// UploadConfig limits inbound file handling.
type UploadConfig struct {
	MaxSizeBytes int64
	Dir          string
}

// SummaryConfig tunes cached read paths (attendance/finance summaries).
type SummaryConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.Auth = AuthConfig{
		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		AccessTokenExpiry:  parseDuration(v.GetString("ACCESS_TOKEN_EXPIRATION"), time.Hour),
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		SessionExpiry:      parseDuration(v.GetString("SESSION_EXPIRATION"), 7*24*time.Hour),
		RememberMeExpiry:   parseDuration(v.GetString("REMEMBER_ME_EXPIRATION"), 30*24*time.Hour),
		VerifyTokenExpiry:  parseDuration(v.GetString("VERIFY_TOKEN_EXPIRATION"), 24*time.Hour),
		ResetTokenExpiry:   parseDuration(v.GetString("RESET_TOKEN_EXPIRATION"), 10*time.Minute),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		Issuer:             v.GetString("TOKEN_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("MAIL_FROM"),
		BaseURL:  v.GetString("MAIL_BASE_URL"),
		Workers:  v.GetInt("MAIL_WORKERS"),
		Retries:  v.GetInt("MAIL_RETRIES"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:     v.GetBool("RATE_LIMIT_ENABLED"),
		Window:      parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		Ceiling:     v.GetInt("RATE_LIMIT_CEILING"),
		AuthCeiling: v.GetInt("RATE_LIMIT_AUTH_CEILING"),
	}

	cfg.Uploads = UploadConfig{
		MaxSizeBytes: v.GetInt64("UPLOAD_MAX_SIZE"),
		Dir:          v.GetString("UPLOAD_DIR"),
	}

	cfg.Summaries = SummaryConfig{
		CacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces fail-fast startup in production: placeholder secrets or
// a missing database are configuration bugs, not something to limp along
// with.
func (c *Config) validate() error {
	if c.Auth.BcryptCost < MinBcryptCost {
		return fmt.Errorf("BCRYPT_COST %d is below the allowed minimum %d", c.Auth.BcryptCost, MinBcryptCost)
	}

	if c.Env != EnvProduction {
		return nil
	}

	if c.Auth.AccessTokenSecret == "" || c.Auth.AccessTokenSecret == devAccessSecret {
		return errors.New("ACCESS_TOKEN_SECRET must be set in production")
	}
	if c.Auth.RefreshTokenSecret == "" || c.Auth.RefreshTokenSecret == devRefreshSecret {
		return errors.New("REFRESH_TOKEN_SECRET must be set in production")
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return errors.New("database host and name must be set in production")
	}
	return nil
}

const (
	devAccessSecret  = "dev_access_secret"
	devRefreshSecret = "dev_refresh_secret"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campushub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ACCESS_TOKEN_SECRET", devAccessSecret)
	v.SetDefault("ACCESS_TOKEN_EXPIRATION", "1h")
	v.SetDefault("REFRESH_TOKEN_SECRET", devRefreshSecret)
	v.SetDefault("SESSION_EXPIRATION", "168h")
	v.SetDefault("REMEMBER_ME_EXPIRATION", "720h")
	v.SetDefault("VERIFY_TOKEN_EXPIRATION", "24h")
	v.SetDefault("RESET_TOKEN_EXPIRATION", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOKEN_ISSUER", "campushub-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@campushub.local")
	v.SetDefault("MAIL_BASE_URL", "http://localhost:5173")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_RETRIES", 3)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_CEILING", 120)
	v.SetDefault("RATE_LIMIT_AUTH_CEILING", 10)

	v.SetDefault("UPLOAD_MAX_SIZE", 5*1024*1024)
	v.SetDefault("UPLOAD_DIR", "./uploads")

	v.SetDefault("SUMMARY_CACHE_TTL", "5m")
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
