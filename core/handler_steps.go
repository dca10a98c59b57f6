package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/caasmo/dripsched/apperr"
	"github.com/caasmo/dripsched/db"
)

type stepInput struct {
	ID        string `json:"id,omitempty"`
	StepOrder int    `json:"step_order"`
	Subject   string `json:"subject"`
	BodyText  string `json:"body_text"`
	DelayDays int    `json:"delay_days"`
}

type insertStepsRequest struct {
	SequenceID string      `json:"sequence_id"`
	Steps      []stepInput `json:"steps"`
	stepInput              // allows a single-step body with no "steps" wrapper
}

type insertStepsResponse struct {
	Ok       bool     `json:"ok"`
	Inserted int      `json:"inserted"`
	Rows     []db.Step `json:"rows"`
}

// StepsHandler bulk-inserts one or more steps for a sequence, inside a
// single transaction. Any (sequence_id, step_order) collision aborts the
// whole batch with 409.
// Endpoint: POST /api/steps
func (a *App) StepsHandler(w http.ResponseWriter, r *http.Request) {
	var req insertStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "invalid JSON body")
		return
	}
	if req.SequenceID == "" {
		apperr.WriteJsonError(w, apperr.Validation, "sequence_id is required")
		return
	}
	if _, err := uuid.Parse(req.SequenceID); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "sequence_id must be a UUID")
		return
	}

	inputs := req.Steps
	if len(inputs) == 0 {
		inputs = []stepInput{req.stepInput}
	}

	steps := make([]db.Step, 0, len(inputs))
	for _, in := range inputs {
		if in.Subject == "" && in.BodyText == "" {
			apperr.WriteJsonError(w, apperr.Validation, "each step requires at least subject or body_text")
			return
		}
		steps = append(steps, db.Step{
			ID:        in.ID,
			StepOrder: in.StepOrder,
			Subject:   in.Subject,
			BodyText:  in.BodyText,
			DelayDays: in.DelayDays,
		})
	}

	rows, err := a.Db().InsertSteps(req.SequenceID, steps)
	if err != nil {
		if errors.Is(err, db.ErrConstraintUnique) {
			apperr.WriteJsonError(w, apperr.Conflict, "duplicate step_order in sequence")
			return
		}
		a.Logger().Error("insert steps failed", "sequence_id", req.SequenceID, "err", err)
		apperr.WriteJsonError(w, apperr.DbError, "failed to insert steps")
		return
	}

	body, _ := json.Marshal(insertStepsResponse{Ok: true, Inserted: len(rows), Rows: rows})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type upsertStepRequest struct {
	ID         string `json:"id,omitempty"`
	SequenceID string `json:"sequence_id"`
	StepOrder  int    `json:"step_order"`
	Subject    string `json:"subject"`
	BodyText   string `json:"body_text"`
	DelayDays  int    `json:"delay_days"`
}

type upsertStepResponse struct {
	Ok   bool    `json:"ok"`
	Step db.Step `json:"step"`
}

// SequenceStepUpsertHandler inserts a step, or updates it in place if
// (sequence_id, step_order) already exists.
// Endpoint: POST /api/sequence_step_upsert
func (a *App) SequenceStepUpsertHandler(w http.ResponseWriter, r *http.Request) {
	var req upsertStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "invalid JSON body")
		return
	}
	if req.SequenceID == "" {
		apperr.WriteJsonError(w, apperr.Validation, "sequence_id is required")
		return
	}
	if req.Subject == "" && req.BodyText == "" {
		apperr.WriteJsonError(w, apperr.Validation, "subject or body_text is required")
		return
	}

	step, err := a.Db().UpsertStep(db.Step{
		ID:         req.ID,
		SequenceID: req.SequenceID,
		StepOrder:  req.StepOrder,
		Subject:    req.Subject,
		BodyText:   req.BodyText,
		DelayDays:  req.DelayDays,
	})
	if err != nil {
		a.Logger().Error("upsert step failed", "sequence_id", req.SequenceID, "err", err)
		apperr.WriteJsonError(w, apperr.DbError, "failed to upsert step")
		return
	}

	body, _ := json.Marshal(upsertStepResponse{Ok: true, Step: *step})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
