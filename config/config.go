package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the server needs to run. Values come from an
// optional config.yaml and INKWELL_* environment variables.
type Config struct {
	Debug     bool
	Addr      string
	SiteName  string
	PublicURL string

	CORSAllowedOrigins []string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StorageBaseURL   string

	CaptchaSecret    string
	CaptchaVerifyURL string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("debug", false)
	v.SetDefault("addr", ":8080")
	v.SetDefault("site_name", "Inkwell")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "inkwell.db")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("storage.bucket", "inkwell-uploads")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("captcha.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INKWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Debug:              v.GetBool("debug"),
		Addr:               v.GetString("addr"),
		SiteName:           v.GetString("site_name"),
		PublicURL:          strings.TrimRight(v.GetString("public_url"), "/"),
		CORSAllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		DatabaseDriver:     v.GetString("database.driver"),
		DatabaseDSN:        v.GetString("database.dsn"),
		JWTSecret:          v.GetString("jwt.secret"),
		JWTTTL:             v.GetDuration("jwt.ttl"),
		StorageEndpoint:    v.GetString("storage.endpoint"),
		StorageAccessKey:   v.GetString("storage.access_key"),
		StorageSecretKey:   v.GetString("storage.secret_key"),
		StorageBucket:      v.GetString("storage.bucket"),
		StorageUseSSL:      v.GetBool("storage.use_ssl"),
		StorageBaseURL:     strings.TrimRight(v.GetString("storage.base_url"), "/"),
		CaptchaSecret:      v.GetString("captcha.secret"),
		CaptchaVerifyURL:   v.GetString("captcha.verify_url"),
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.JWTSecret == "" {
		if !cfg.Debug {
			return nil, errors.New("jwt.secret is required (set INKWELL_JWT_SECRET)")
		}
		cfg.JWTSecret = "inkwell-dev-secret"
	}

	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}

	return cfg, nil
}
