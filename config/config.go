package config

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Provider holds the application configuration and allows for atomic,
// lock-free hot-swaps on SIGHUP.
type Provider struct {
	value atomic.Value // Holds the current *Config
}

// NewProvider creates a new configuration provider with the initial config.
// It panics if the initialConfig is nil.
func NewProvider(c *Config) *Provider {
	if c == nil {
		panic("initial config cannot be nil")
	}
	p := &Provider{}
	p.value.Store(c)
	return p
}

// Get returns the current configuration snapshot. Safe for concurrent use.
func (p *Provider) Get() *Config {
	return p.value.Load().(*Config)
}

// Update atomically swaps the current configuration with the new one.
func (p *Provider) Update(newConfig *Config) {
	p.value.Store(newConfig)
}

const (
	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvRedirectURI         = "REDIRECT_URI"
	EnvAPIKey              = "KAPTIV_API_KEY"
	EnvWorkerSecret        = "WORKER_SECRET"
	EnvFrontendReturn      = "FRONTEND_RETURN"
	EnvSupabaseURL         = "SUPABASE_URL"
	EnvSupabaseServiceKey  = "SUPABASE_SERVICE_KEY"
	EnvEmailFrom           = "EMAIL_FROM"
	EnvJobBatchSize        = "JOB_BATCH_SIZE"
	EnvConfigEncryptionKey = "CONFIG_ENCRYPTION_KEY"
)

// DefaultTimezone is the tenant default when no timezone is supplied at
// sequence-start time. Advisory metadata only - never consulted for
// scheduling arithmetic (spec §9).
const DefaultTimezone = "Asia/Singapore"

// DefaultJobBatchSize is how many jobs a single scheduler tick claims.
const DefaultJobBatchSize = 20

// GoogleOAuth2 holds the tenant mail account grant exchanger's client
// registration with the provider.
type GoogleOAuth2 struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// Scheduler configures the worker tick.
type Scheduler struct {
	// Interval controls how often the scheduler polls for due jobs.
	Interval Duration

	// BatchSize limits how many jobs a single tick claims and processes.
	BatchSize int `toml:"batch_size"`

	// MaxAttempts is the retry ceiling before a job is marked permanently
	// failed and alerted on.
	MaxAttempts int `toml:"max_attempts"`
}

type Server struct {
	// Addr is the HTTP server address to listen on (e.g. ":8080").
	Addr string

	// ShutdownGracefulTimeout bounds how long graceful shutdown waits.
	ShutdownGracefulTimeout Duration `toml:"shutdown_graceful_timeout"`

	ReadTimeout       Duration
	ReadHeaderTimeout Duration
	WriteTimeout      Duration
	IdleTimeout       Duration

	// ClientIpProxyHeader names the header to trust for client IP when
	// behind a proxy. Empty means use r.RemoteAddr directly.
	ClientIpProxyHeader string
}

// BaseURL returns the full base URL including scheme and port. Uses https
// unless the host is localhost. If Addr cannot be parsed, returns Addr as-is.
func (s *Server) BaseURL() string {
	host, port, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return s.Addr
	}
	if host == "" {
		host = "localhost"
	}
	scheme := "https"
	if host == "localhost" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, host, port)
}

// Mail configures the provider-facing send and thread-listing endpoints
// used by the mail sender (component B) and the reply detector (component C).
type Mail struct {
	// SendEndpoint is POSTed {raw: <base64url message>}.
	SendEndpoint string `toml:"send_endpoint"`

	// ThreadURLFmt is formatted with a thread ID to list its messages,
	// e.g. "https://gmail.googleapis.com/gmail/v1/users/me/threads/%s".
	ThreadURLFmt string `toml:"thread_url_fmt"`

	// FromAddress is the From header on outbound messages.
	FromAddress string
}

// ReplyDetection configures component C's best-effort reply check.
type ReplyDetection struct {
	// CacheTTL bounds how long a thread listing is cached before
	// re-fetching from the provider.
	CacheTTL Duration
}

// MXCheck configures component G's advisory recipient-domain validation.
type MXCheck struct {
	// Resolver is the DNS server queried for MX records ("host:port").
	Resolver string

	// Timeout is carried in the config but is not applied: DNSMXChecker
	// uses the miekg/dns client's default timeouts and the caller's
	// context. On any DNS failure the check fails open (never blocks
	// sequence start).
	Timeout Duration
}

// Supabase carries placeholder credentials for an external recipient-list
// source. Not wired into any component in this build: nothing in this
// implementation's scope reads a Supabase table, so these fields are
// accepted from the environment and stored for forward compatibility only.
type Supabase struct {
	URL        string
	ServiceKey string
}

// Notifier configures where permanently-failed-job alerts are sent.
type Notifier struct {
	Discord Discord
}

type Discord struct {
	Activated    bool
	WebhookURL   string
	APIRateLimit Duration
	APIBurst     int
	SendTimeout  Duration
}

// Backup configures the continuous litestream-style replication of DBFile.
type Backup struct {
	Activated bool
	Dest      string
	Interval  Duration
}

type Config struct {
	// Source records where this snapshot came from: "default"
	// (NewDefaultConfig), "env" (Load) or "db" (LoadFromStore).
	Source string

	DBFile   string `toml:"db_file"`
	Google   GoogleOAuth2
	Server   Server
	Scheduler Scheduler
	Mail     Mail
	Reply    ReplyDetection
	MXCheck  MXCheck
	Supabase Supabase
	Notifier Notifier
	Backup   Backup

	// APIKey protects every admin/tenant HTTP route except the OAuth
	// callback and the worker tick route.
	APIKey string

	// WorkerSecret protects GET /api/run_scheduled_jobs.
	WorkerSecret string

	// FrontendReturn is the default return_url for /oauth/start when the
	// caller does not supply one.
	FrontendReturn string

	// DefaultTimezone is stamped onto runs/jobs when the caller omits one.
	DefaultTimezone string
}

var (
	DefaultReadTimeout       = Duration{2 * time.Second}
	DefaultReadHeaderTimeout = Duration{2 * time.Second}
	DefaultWriteTimeout      = Duration{3 * time.Second}
	DefaultIdleTimeout       = Duration{1 * time.Minute}
	DefaultShutdownTimeout   = Duration{15 * time.Second}
)

// FillServer applies zero-value defaults to the server section.
func FillServer(cfg *Config) Server {
	s := cfg.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.ShutdownGracefulTimeout.Duration == 0 {
		s.ShutdownGracefulTimeout = DefaultShutdownTimeout
	}
	if s.ReadTimeout.Duration == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.ReadHeaderTimeout.Duration == 0 {
		s.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.WriteTimeout.Duration == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout.Duration == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	return s
}
