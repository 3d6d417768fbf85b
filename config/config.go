package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LoadENV loads variables from .env unless GO_ENV says otherwise.
// Production deployments inject real environment variables instead.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == EnvDevelopment {
		if err := godotenv.Load(); err != nil {
			// A missing .env is fine in CI; callers log and continue.
			return err
		}
	}
	return nil
}

type Config struct {
	GoEnv string
	Port  int

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Playback   PlaybackConfig
	Cron       CronConfig
	CORS       CORSConfig
	Revocation RevocationConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret             string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// AuthConfig tunes login protection and reset-token lifetime.
type AuthConfig struct {
	BruteForceEnabled bool
	ResetTokenExpiry  time.Duration
}

// StorageConfig points at the Spaces bucket holding course resources.
type StorageConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	CDNDomain string
}

// PlaybackConfig signs short-lived video playback tokens.
type PlaybackConfig struct {
	SigningSecret string
	TokenTTL      time.Duration
}

type CronConfig struct {
	Enabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RevocationConfig selects the revocation-set backend: memory, redis or
// database. Memory is process-local; see utils/auth/revocation.go.
type RevocationConfig struct {
	Backend string
}

// Get binds environment variables into a Config. Defaults keep a bare
// development machine working; JWT_SECRET must be set outside development.
func Get() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// With an explicit config file a missing .env surfaces as a path
		// error, not viper.ConfigFileNotFoundError.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{
		GoEnv: v.GetString("GO_ENV"),
		Port:  v.GetInt("PORT"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER_NAME"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret:             v.GetString("JWT_SECRET"),
			Issuer:             v.GetString("JWT_ISSUER"),
			AccessTokenExpiry:  parseDuration(v.GetString("JWT_ACCESS_EXPIRY"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(v.GetString("JWT_REFRESH_EXPIRY"), 7*24*time.Hour),
		},
		Auth: AuthConfig{
			BruteForceEnabled: v.GetBool("BRUTE_FORCE_ENABLED"),
			ResetTokenExpiry:  parseDuration(v.GetString("RESET_TOKEN_EXPIRY"), time.Hour),
		},
		Storage: StorageConfig{
			AccessKey: v.GetString("SPACES_ACCESS_KEY"),
			SecretKey: v.GetString("SPACES_SECRET_KEY"),
			Bucket:    v.GetString("SPACES_BUCKET"),
			Region:    v.GetString("SPACES_REGION"),
			Endpoint:  v.GetString("SPACES_ENDPOINT"),
			CDNDomain: v.GetString("SPACES_CDN_DOMAIN"),
		},
		Playback: PlaybackConfig{
			SigningSecret: v.GetString("PLAYBACK_SIGNING_SECRET"),
			TokenTTL:      parseDuration(v.GetString("PLAYBACK_TOKEN_TTL"), 10*time.Minute),
		},
		Cron: CronConfig{
			Enabled: v.GetBool("CRON_ENABLED"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		},
		Revocation: RevocationConfig{
			Backend: v.GetString("REVOCATION_BACKEND"),
		},
	}

	if cfg.GoEnv != EnvDevelopment && cfg.GoEnv != "" && cfg.JWT.Secret == "dev_secret" {
		return nil, errors.New("JWT_SECRET must be set outside development")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GO_ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER_NAME", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms")
	v.SetDefault("DB_SSL_MODE", "disable")

	v.SetDefault("REDIS_URL", "")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "lms-api")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")

	v.SetDefault("BRUTE_FORCE_ENABLED", true)
	v.SetDefault("RESET_TOKEN_EXPIRY", "1h")

	v.SetDefault("SPACES_REGION", "blr1")
	v.SetDefault("SPACES_ENDPOINT", "https://blr1.digitaloceanspaces.com")

	v.SetDefault("PLAYBACK_SIGNING_SECRET", "")
	v.SetDefault("PLAYBACK_TOKEN_TTL", "10m")

	v.SetDefault("CRON_ENABLED", true)
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("REVOCATION_BACKEND", "memory")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
