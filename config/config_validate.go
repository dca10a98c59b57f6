package config

import (
	"fmt"
)

// Validate checks the configuration for correctness before it is swapped
// into a Provider, on both initial load and SIGHUP reload.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := validateScheduler(&cfg.Scheduler); err != nil {
		return fmt.Errorf("scheduler config validation failed: %w", err)
	}
	if err := validateGoogle(&cfg.Google); err != nil {
		return fmt.Errorf("google oauth2 config validation failed: %w", err)
	}
	if err := validateMail(&cfg.Mail); err != nil {
		return fmt.Errorf("mail config validation failed: %w", err)
	}
	if cfg.DBFile == "" {
		return fmt.Errorf("db_file cannot be empty")
	}
	return nil
}

func validateServer(s *Server) error {
	if s.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if s.ShutdownGracefulTimeout.Duration <= 0 {
		return fmt.Errorf("shutdown_graceful_timeout must be positive")
	}
	return nil
}

func validateScheduler(s *Scheduler) error {
	if s.Interval.Duration <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	return nil
}

func validateGoogle(g *GoogleOAuth2) error {
	if g.ClientID == "" || g.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret are required")
	}
	if g.RedirectURI == "" {
		return fmt.Errorf("redirect_uri cannot be empty")
	}
	return nil
}

func validateMail(m *Mail) error {
	if m.SendEndpoint == "" {
		return fmt.Errorf("send_endpoint cannot be empty")
	}
	if m.ThreadURLFmt == "" {
		return fmt.Errorf("thread_url_fmt cannot be empty")
	}
	return nil
}
