package config

import (
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.CacheType != "sqlite" || cfg.CachePath != defaultCachePath || cfg.CachePrefix != "dashboard" {
		t.Fatalf("unexpected cache settings %+v", cfg)
	}
	if cfg.SessionCookieName != defaultCookieName || cfg.SessionIssuer != defaultIssuer {
		t.Fatalf("unexpected session settings %+v", cfg)
	}
	if cfg.RemoteOffline {
		t.Fatalf("expected remote online by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DASHBOARD_SESSION_SIGNING_SECRET", "from-env")
	t.Setenv("DASHBOARD_CACHE_TYPE", "Memory")
	t.Setenv("DASHBOARD_REMOTE_OFFLINE", "true")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SessionSecret != "from-env" || cfg.CacheType != "memory" || !cfg.RemoteOffline {
		t.Fatalf("expected environment overrides, got %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
	}{
		{name: "missing secret", settings: map[string]any{}},
		{name: "unknown cache type", settings: map[string]any{"session.signing_secret": "s", "cache.type": "redis"}},
		{name: "sqlite cache without path", settings: map[string]any{"session.signing_secret": "s", "cache.path": " "}},
		{name: "no remote path while online", settings: map[string]any{"session.signing_secret": "s", "remote.database_path": ""}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadStoreSkipsSessionSettings(t *testing.T) {
	cfg, err := LoadStore(NewViper())
	if err != nil {
		t.Fatalf("load store failed: %v", err)
	}
	if cfg.RemoteDatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path %q", cfg.RemoteDatabasePath)
	}
}
