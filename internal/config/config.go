package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "DASHBOARD"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "dashboard.db"
	defaultCacheType    = "sqlite"
	defaultCachePath    = "dashboard-cache.db"
	defaultCachePrefix  = "dashboard"
	defaultLogLevel     = "info"
	defaultCookieName   = "app_session"
	defaultIssuer       = "dashboard-auth"
)

// AppConfig captures runtime configuration for the dashboard API.
type AppConfig struct {
	HTTPAddress        string
	RemoteDatabasePath string
	RemoteOffline      bool
	CacheType          string
	CachePath          string
	CachePrefix        string
	LogLevel           string
	SessionSecret      string
	SessionIssuer      string
	SessionCookieName  string
	AllowedOrigins     []string
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
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("remote.database_path", defaultDatabasePath)
	configViper.SetDefault("remote.offline", false)
	configViper.SetDefault("cache.type", defaultCacheType)
	configViper.SetDefault("cache.path", defaultCachePath)
	configViper.SetDefault("cache.prefix", defaultCachePrefix)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		RemoteDatabasePath: configViper.GetString("remote.database_path"),
		RemoteOffline:      configViper.GetBool("remote.offline"),
		CacheType:          strings.ToLower(strings.TrimSpace(configViper.GetString("cache.type"))),
		CachePath:          configViper.GetString("cache.path"),
		CachePrefix:        configViper.GetString("cache.prefix"),
		LogLevel:           configViper.GetString("log.level"),
		SessionSecret:      configViper.GetString("session.signing_secret"),
		SessionIssuer:      configViper.GetString("session.issuer"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		AllowedOrigins:     configViper.GetStringSlice("http.allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadStore parses only the storage settings; CLI maintenance commands do not need a session secret.
func LoadStore(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		RemoteDatabasePath: configViper.GetString("remote.database_path"),
		RemoteOffline:      configViper.GetBool("remote.offline"),
		CacheType:          strings.ToLower(strings.TrimSpace(configViper.GetString("cache.type"))),
		CachePath:          configViper.GetString("cache.path"),
		CachePrefix:        configViper.GetString("cache.prefix"),
		LogLevel:           configViper.GetString("log.level"),
	}
	if err := cfg.validateStore(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	return c.validateStore()
}

func (c AppConfig) validateStore() error {
	if strings.TrimSpace(c.RemoteDatabasePath) == "" && !c.RemoteOffline {
		return fmt.Errorf("remote.database_path is required unless remote.offline is set")
	}
	switch c.CacheType {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.CachePath) == "" {
			return fmt.Errorf("cache.path is required for the sqlite cache")
		}
	default:
		return fmt.Errorf("cache.type must be memory or sqlite, got %q", c.CacheType)
	}
	return nil
}
