package core

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/caasmo/dripsched/apperr"
	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/sequence"
)

type startSequenceRequest struct {
	SequenceID     string   `json:"sequence_id"`
	OwnerID        string   `json:"owner_id"`
	Recipients     []string `json:"recipients"`
	FirstSendTime  string   `json:"first_send_time"`
	Timezone       string   `json:"timezone"`
}

type startSequenceResponse struct {
	Ok   bool     `json:"ok"`
	Runs []db.Run `json:"runs"`
	Jobs []db.Job `json:"jobs"`
}

// StartSequenceHandler materializes one run and one first-step job per
// recipient.
// Endpoint: POST /api/start_sequence
func (a *App) StartSequenceHandler(w http.ResponseWriter, r *http.Request) {
	var req startSequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "invalid JSON body")
		return
	}
	if req.SequenceID == "" || req.OwnerID == "" {
		apperr.WriteJsonError(w, apperr.Validation, "sequence_id and owner_id are required")
		return
	}

	var firstSendTime time.Time
	if req.FirstSendTime != "" {
		var err error
		firstSendTime, err = time.Parse(time.RFC3339, req.FirstSendTime)
		if err != nil {
			apperr.WriteJsonError(w, apperr.Validation, "first_send_time must be RFC3339")
			return
		}
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = a.Config().DefaultTimezone
	}

	result, err := a.Starter().Start(r.Context(), sequence.StartRequest{
		SequenceID:    req.SequenceID,
		OwnerID:       req.OwnerID,
		Recipients:    req.Recipients,
		FirstSendTime: firstSendTime,
		Timezone:      timezone,
	})
	if err != nil {
		a.Logger().Error("start sequence failed", "sequence_id", req.SequenceID, "err", err)
		apperr.WriteJsonError(w, apperr.NotFound, err.Error())
		return
	}

	body, _ := json.Marshal(startSequenceResponse{Ok: true, Runs: result.Runs, Jobs: result.Jobs})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}
