package core

import (
	"encoding/json"
	"net/http"

	"github.com/caasmo/dripsched/apperr"
	"github.com/caasmo/dripsched/db"
)

type statusResponse struct {
	Ok        bool   `json:"ok"`
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// StatusHandler reports whether a tenant has a usable connected mail
// account.
// Endpoint: GET /status?owner_id=
func (a *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		apperr.WriteJsonError(w, apperr.Validation, "owner_id is required")
		return
	}

	cred, err := a.Db().GetCredential(ownerID)
	if err != nil {
		a.Logger().Error("status lookup failed", "owner_id", ownerID, "err", err)
		apperr.WriteJsonError(w, apperr.DbError, "failed to load credential")
		return
	}

	resp := statusResponse{Ok: true}
	if cred != nil && cred.RefreshToken != "" {
		resp.Connected = true
		resp.Email = cred.Email
		resp.CreatedAt = db.TimeFormat(cred.CreatedAt)
	}

	body, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
