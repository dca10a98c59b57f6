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

// App is the application wide context shared by every HTTP handler and the
// scheduler daemon. db connections and other heavy, long-lived objects live
// here.
type App struct {
	db             db.DbApp
	router         *router.Router
	cache          cache.Cache[string, interface{}]
	configProvider *config.Provider
	logger         *slog.Logger
	notifier       notify.Notifier

	exchanger *oauth2.Exchanger
	mailer    *mail.Sender
	starter   *sequence.Starter
	worker    *worker.Worker
}

func NewApp(opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Db returns the database instance.
func (a *App) Db() db.DbApp {
	return a.db
}

// SetDb sets the database instance. Panics on nil since every handler
// depends on it being present.
func (a *App) SetDb(d db.DbApp) {
	if d == nil {
		panic("core: db cannot be nil")
	}
	a.db = d
}

// Router returns the application's router instance.
func (a *App) Router() *router.Router {
	return a.router
}

// SetRouter sets the router instance.
func (a *App) SetRouter(r *router.Router) {
	a.router = r
}

// Cache returns the application's cache instance.
func (a *App) Cache() cache.Cache[string, interface{}] {
	return a.cache
}

// SetCache sets the cache instance.
func (a *App) SetCache(c cache.Cache[string, interface{}]) {
	a.cache = c
}

// Logger returns the application's logger instance.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// SetLogger sets the logger instance.
func (a *App) SetLogger(l *slog.Logger) {
	a.logger = l
}

// Notifier returns the application's failure-alert notifier.
func (a *App) Notifier() notify.Notifier {
	return a.notifier
}

// SetNotifier sets the notifier instance.
func (a *App) SetNotifier(n notify.Notifier) {
	a.notifier = n
}

// Config returns the currently active application config snapshot. Safe for
// concurrent use; reflects the latest SIGHUP reload.
func (a *App) Config() *config.Config {
	return a.configProvider.Get()
}

// SetConfigProvider sets the config provider backing Config().
func (a *App) SetConfigProvider(p *config.Provider) {
	a.configProvider = p
}

// Close releases the database connection.
func (a *App) Close() {
	a.db.Close()
}

// Exchanger returns the OAuth grant exchanger backing /oauth/start and
// /oauth2/callback.
func (a *App) Exchanger() *oauth2.Exchanger {
	return a.exchanger
}

// SetExchanger sets the OAuth grant exchanger.
func (a *App) SetExchanger(e *oauth2.Exchanger) {
	a.exchanger = e
}

// Mailer returns the mail sender backing /send_email and the worker.
func (a *App) Mailer() *mail.Sender {
	return a.mailer
}

// SetMailer sets the mail sender.
func (a *App) SetMailer(m *mail.Sender) {
	a.mailer = m
}

// Starter returns the sequence starter backing /api/start_sequence.
func (a *App) Starter() *sequence.Starter {
	return a.starter
}

// SetStarter sets the sequence starter.
func (a *App) SetStarter(s *sequence.Starter) {
	a.starter = s
}

// Worker returns the scheduled-job worker backing /api/run_scheduled_jobs.
func (a *App) Worker() *worker.Worker {
	return a.worker
}

// SetWorker sets the scheduled-job worker.
func (a *App) SetWorker(w *worker.Worker) {
	a.worker = w
}
