package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "COUGHCROWD"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "coughcrowd.db"
	defaultUploadDir     = "uploads"
	defaultBaseURL       = "http://localhost:8080"
	defaultLogLevel      = "info"
	defaultAdminUsername = "admin"
	defaultTokenTTLMin   = 720
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	UploadDir         string
	BaseURL           string
	LogLevel          string
	AdminUsername     string
	AdminPasswordHash string
	SigningSecret     string
	TokenTTLMinutes   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.base_url", defaultBaseURL)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("uploads.dir", defaultUploadDir)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("admin.username", defaultAdminUsername)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		BaseURL:           configViper.GetString("http.base_url"),
		DatabasePath:      configViper.GetString("database.path"),
		UploadDir:         configViper.GetString("uploads.dir"),
		LogLevel:          configViper.GetString("log.level"),
		AdminUsername:     configViper.GetString("admin.username"),
		AdminPasswordHash: configViper.GetString("admin.password_hash"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTLMinutes:   configViper.GetInt("token.ttl_minutes"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("http.base_url is required")
	}
	if strings.TrimSpace(c.AdminUsername) == "" {
		return fmt.Errorf("admin.username is required")
	}
	if strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("admin.password_hash is required")
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}
