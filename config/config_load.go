package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load builds the initial configuration: defaults, then environment
// overrides (spec §6's environment inputs), then validation. dbFile
// overrides the default DB path.
func Load(dbFile string) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Source = "env"
	if dbFile != "" {
		cfg.DBFile = dbFile
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvGoogleClientID); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv(EnvGoogleClientSecret); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv(EnvRedirectURI); v != "" {
		cfg.Google.RedirectURI = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvWorkerSecret); v != "" {
		cfg.WorkerSecret = v
	}
	if v := os.Getenv(EnvFrontendReturn); v != "" {
		cfg.FrontendReturn = v
	}
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		cfg.Supabase.URL = v
	}
	if v := os.Getenv(EnvSupabaseServiceKey); v != "" {
		cfg.Supabase.ServiceKey = v
	}
	if v := os.Getenv(EnvEmailFrom); v != "" {
		cfg.Mail.FromAddress = v
	}
	if v := os.Getenv(EnvJobBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scheduler.BatchSize = n
		}
	}
}

// LoadFromStore loads the application's config from an encrypted store
// (SIGHUP reload path and startup-from-db path share this). The TOML
// decoded here only overrides the fields present in it; callers that want
// env overrides reapplied on top should call applyEnvOverrides again, since
// a stored snapshot is expected to already carry the operator's intended
// values.
func LoadFromStore(store SecureStore) (*Config, error) {
	decrypted, err := store.Latest(ScopeApplication)
	if err != nil {
		return nil, fmt.Errorf("config: fetch latest from store: %w", err)
	}
	cfg := NewDefaultConfig()
	if _, err := toml.NewDecoder(bytes.NewReader(decrypted)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal toml: %w", err)
	}
	cfg.Source = "db"

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed after loading from store: %w", err)
	}
	return cfg, nil
}
