package config

import (
	"fmt"
	"log/slog"
)

// Reload returns a function that, when called, fetches the latest stored
// application config, validates it, and swaps it into provider. Intended to
// be wired to SIGHUP.
func Reload(store SecureStore, provider *Provider, logger *slog.Logger) func() error {
	return func() error {
		logger.Debug("reload: fetching latest application configuration")
		newCfg, err := LoadFromStore(store)
		if err != nil {
			logger.Error("reload: failed to load application configuration", "error", err)
			return fmt.Errorf("reload: %w", err)
		}

		provider.Update(newCfg)
		logger.Info("reload: application configuration reloaded")
		return nil
	}
}
