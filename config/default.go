package config

import "time"

// NewDefaultConfig returns a Config with sensible defaults for local
// development. Secrets are empty strings; Load overrides them from the
// environment.
func NewDefaultConfig() *Config {
	return &Config{
		Source: "default",
		DBFile: "dripsched.db",
		Google: GoogleOAuth2{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.send",
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		Server: Server{
			Addr:                    ":8080",
			ShutdownGracefulTimeout: DefaultShutdownTimeout,
			ReadTimeout:             DefaultReadTimeout,
			ReadHeaderTimeout:       DefaultReadHeaderTimeout,
			WriteTimeout:            DefaultWriteTimeout,
			IdleTimeout:             DefaultIdleTimeout,
		},
		Scheduler: Scheduler{
			Interval:    Duration{30 * time.Second},
			BatchSize:   DefaultJobBatchSize,
			MaxAttempts: 5,
		},
		Mail: Mail{
			SendEndpoint: "https://gmail.googleapis.com/gmail/v1/users/me/messages/send",
			ThreadURLFmt: "https://gmail.googleapis.com/gmail/v1/users/me/threads/%s",
		},
		Reply: ReplyDetection{
			CacheTTL: Duration{5 * time.Minute},
		},
		MXCheck: MXCheck{
			Resolver: "1.1.1.1:53",
			Timeout:  Duration{3 * time.Second},
		},
		Notifier: Notifier{
			Discord: Discord{
				Activated:    false,
				APIRateLimit: Duration{2 * time.Second},
				APIBurst:     1,
				SendTimeout:  Duration{10 * time.Second},
			},
		},
		Backup: Backup{
			Activated: false,
			Interval:  Duration{1 * time.Hour},
		},
		DefaultTimezone: DefaultTimezone,
	}
}
