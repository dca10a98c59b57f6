package core

import (
	"encoding/json"
	"net/http"

	"github.com/caasmo/dripsched/apperr"
)

type runScheduledJobsResponse struct {
	Ok      bool        `json:"ok"`
	Summary interface{} `json:"summary"`
}

// RunScheduledJobsHandler triggers one worker tick: claim a batch of due
// jobs and process them in order. Per-job failures never fail the trigger:
// it returns 200 with a summary that enumerates them, so the caller's
// scheduler keeps invoking it. Only a failure to claim the batch is
// answered with a db_error (500).
// Endpoint: GET /api/run_scheduled_jobs
func (a *App) RunScheduledJobsHandler(w http.ResponseWriter, r *http.Request) {
	batchSize := a.Config().Scheduler.BatchSize

	summary, err := a.Worker().Run(r.Context(), batchSize)
	if err != nil {
		a.Logger().Error("scheduled job run failed", "err", err)
		apperr.WriteJsonError(w, apperr.DbError, "failed to claim scheduled jobs")
		return
	}

	body, _ := json.Marshal(runScheduledJobsResponse{Ok: true, Summary: summary})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
