// Package dripsched wires every component built under this module into a
// running App plus its HTTP routes and background daemons. cmd/dripsched is
// the only caller.
package dripsched

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/caasmo/dripsched/backup"
	"github.com/caasmo/dripsched/cache/ristretto"
	"github.com/caasmo/dripsched/config"
	"github.com/caasmo/dripsched/core"
	"github.com/caasmo/dripsched/db/crawshaw"
	"github.com/caasmo/dripsched/mail"
	"github.com/caasmo/dripsched/notify"
	"github.com/caasmo/dripsched/notify/discord"
	oauth2ex "github.com/caasmo/dripsched/oauth2"
	"github.com/caasmo/dripsched/queue/scheduler"
	"github.com/caasmo/dripsched/queue/worker"
	"github.com/caasmo/dripsched/replydetector"
	"github.com/caasmo/dripsched/router"
	"github.com/caasmo/dripsched/sequence"
	"github.com/caasmo/dripsched/server"
	"github.com/caasmo/dripsched/topk"
)

// App bundles everything main needs to run and shut down the service.
type App struct {
	Core      *core.App
	Server    *server.Server
	Scheduler *scheduler.Scheduler
	Provider  *config.Provider
}

// New builds the fully wired application from cfg: store, mailer, OAuth
// exchanger, sequence components, worker, HTTP routes and the scheduler
// daemon. New registers the scheduler (and the litestream backup when it
// is activated) on Server via AddDaemon; the caller runs Server.Run() and
// arranges for Core.Close() on shutdown (cmd/dripsched adds NewDbCloser).
func New(cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if key := os.Getenv(config.EnvConfigEncryptionKey); key != "" {
		if err := crawshaw.SetSecretIdentity(key); err != nil {
			return nil, fmt.Errorf("dripsched: load encryption key: %w", err)
		}
	}

	store, err := crawshaw.New(cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("dripsched: open db: %w", err)
	}

	appCache, err := ristretto.New[interface{}]("small")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dripsched: build app cache: %w", err)
	}
	threadCache, err := ristretto.New[bool]("small")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dripsched: build reply cache: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.Google.AuthURL,
			TokenURL: cfg.Google.TokenURL,
		},
	}

	exchanger := &oauth2ex.Exchanger{Config: oauthConfig, Store: store}
	mailer := &mail.Sender{OAuthConfig: oauthConfig, SendEndpoint: cfg.Mail.SendEndpoint}

	detector := &replydetector.Detector{
		OAuthConfig:  oauthConfig,
		ThreadURLFmt: cfg.Mail.ThreadURLFmt,
		Cache:        threadCache,
		CacheTTL:     cfg.Reply.CacheTTL.Duration,
	}
	stateMachine := &sequence.StateMachine{Store: store, Detector: detector}

	var checker sequence.MXChecker
	if cfg.MXCheck.Resolver != "" {
		checker = &sequence.DNSMXChecker{Resolver: cfg.MXCheck.Resolver}
	}
	starter := &sequence.Starter{Store: store, Checker: checker}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dripsched: build notifier: %w", err)
	}

	wk := &worker.Worker{
		Store:        store,
		Mailer:       mailer,
		StateMachine: stateMachine,
		Notifier:     notifier,
		FromEmail:    cfg.Mail.FromAddress,
		MaxAttempts:  cfg.Scheduler.MaxAttempts,
		FailureRanking: topk.NewFailureRanking(topk.Params{
			K: 20, WindowSize: 10, Width: 2048, Depth: 4, TickSize: 50,
		}),
	}

	provider := config.NewProvider(cfg)

	coreApp, err := core.NewApp(
		core.WithDb(store),
		core.WithRouter(router.New()),
		core.WithCache(appCache),
		core.WithConfigProvider(provider),
		core.WithLogger(logger),
		core.WithNotifier(notifier),
		core.WithExchanger(exchanger),
		core.WithMailer(mailer),
		core.WithStarter(starter),
		core.WithWorker(wk),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dripsched: build app: %w", err)
	}

	route(cfg, coreApp)

	srv := server.NewServer(provider, coreApp.Router(), logger, nil)
	sched := scheduler.New(wk, cfg.Scheduler.Interval.Duration, cfg.Scheduler.BatchSize)
	srv.AddDaemon(sched)

	lsDaemon, err := backup.NewLitestream(provider, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dripsched: build litestream: %w", err)
	}
	if lsDaemon != nil {
		srv.AddDaemon(lsDaemon)
	}

	return &App{Core: coreApp, Server: srv, Scheduler: sched, Provider: provider}, nil
}

// dbCloser is a server.Daemon whose only job is closing the store on
// graceful shutdown, so db.Close() runs inside the same errgroup as every
// other daemon's Stop instead of racing the process exit in main.
type dbCloser struct {
	core *core.App
}

// NewDbCloser wraps coreApp's Close in a no-op-Start daemon.
func NewDbCloser(coreApp *core.App) server.Daemon {
	return &dbCloser{core: coreApp}
}

func (d *dbCloser) Name() string { return "db-closer" }

func (d *dbCloser) Start() error { return nil }

func (d *dbCloser) Stop(ctx context.Context) error {
	d.core.Close()
	return nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if !cfg.Notifier.Discord.Activated {
		return notify.NewNilNotifier(), nil
	}
	return discord.New(discord.Options{
		WebhookURL:   cfg.Notifier.Discord.WebhookURL,
		APIRateLimit: rate.Every(cfg.Notifier.Discord.APIRateLimit.Duration),
		APIBurst:     cfg.Notifier.Discord.APIBurst,
		SendTimeout:  cfg.Notifier.Discord.SendTimeout.Duration,
	}, logger)
}
