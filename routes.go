package dripsched

import (
	"github.com/caasmo/dripsched/config"
	"github.com/caasmo/dripsched/core"
	r "github.com/caasmo/dripsched/router"
)

// route wires every endpoint in the HTTP surface to its handler, applying
// RequireAPIKey to every tenant/admin route and RequireWorkerSecret to the
// scheduler trigger. The OAuth provider callback carries no secret of its
// own - the one-time state ticket is the authentication.
func route(cfg *config.Config, ap *core.App) {
	ap.Router().RegisterAll(
		r.NewRoute("POST /oauth/start").
			WithHandlerFunc(ap.StartOAuthHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("GET /oauth2/callback").
			WithHandlerFunc(ap.OAuthCallbackHandler),

		r.NewRoute("GET /status").
			WithHandlerFunc(ap.StatusHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("POST /send_email").
			WithHandlerFunc(ap.SendEmailHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("POST /api/steps").
			WithHandlerFunc(ap.StepsHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("POST /api/sequence_step_upsert").
			WithHandlerFunc(ap.SequenceStepUpsertHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("POST /api/start_sequence").
			WithHandlerFunc(ap.StartSequenceHandler).
			WithMiddleware(ap.RequireAPIKey),

		r.NewRoute("GET /api/run_scheduled_jobs").
			WithHandlerFunc(ap.RunScheduledJobsHandler).
			WithMiddleware(ap.RequireWorkerSecret),
	)
}
