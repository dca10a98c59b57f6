package core

import (
	"log/slog"

	"github.com/caasmo/dripsched/cache"
	"github.com/caasmo/dripsched/config"
	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/mail"
	"github.com/caasmo/dripsched/notify"
	"github.com/caasmo/dripsched/oauth2"
	"github.com/caasmo/dripsched/queue/worker"
	"github.com/caasmo/dripsched/router"
	"github.com/caasmo/dripsched/sequence"
)

type Option func(*App)

// WithDb sets the database instance backing every store role.
func WithDb(d db.DbApp) Option {
	return func(a *App) {
		a.SetDb(d)
	}
}

// WithRouter sets the router implementation.
func WithRouter(r *router.Router) Option {
	return func(a *App) {
		a.router = r
	}
}

// WithCache sets the cache implementation.
func WithCache(c cache.Cache[string, interface{}]) Option {
	return func(a *App) {
		a.cache = c
	}
}

// WithConfigProvider sets the application's configuration provider.
func WithConfigProvider(p *config.Provider) Option {
	return func(a *App) {
		a.configProvider = p
	}
}

// WithLogger sets the logger implementation.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithNotifier sets the failure-alert notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) {
		a.notifier = n
	}
}

// WithExchanger sets the OAuth grant exchanger.
func WithExchanger(e *oauth2.Exchanger) Option {
	return func(a *App) {
		a.exchanger = e
	}
}

// WithMailer sets the mail sender.
func WithMailer(m *mail.Sender) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// WithStarter sets the sequence starter.
func WithStarter(s *sequence.Starter) Option {
	return func(a *App) {
		a.starter = s
	}
}

// WithWorker sets the scheduled-job worker.
func WithWorker(w *worker.Worker) Option {
	return func(a *App) {
		a.worker = w
	}
}
