package core

import (
	"encoding/json"
	"net/http"

	"github.com/caasmo/dripsched/apperr"
)

type sendEmailRequest struct {
	OwnerID  string `json:"owner_id"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
}

type sendEmailResponse struct {
	Ok        bool   `json:"ok"`
	MessageID string `json:"message_id"`
}

// SendEmailHandler sends one message on behalf of a connected tenant,
// outside of any sequence.
// Endpoint: POST /send_email
func (a *App) SendEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "invalid JSON body")
		return
	}
	if req.OwnerID == "" || req.To == "" {
		apperr.WriteJsonError(w, apperr.Validation, "owner_id and to are required")
		return
	}
	if err := ValidateEmail(req.To); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, err.Error())
		return
	}

	cred, err := a.Db().GetCredential(req.OwnerID)
	if err != nil {
		apperr.WriteJsonError(w, apperr.DbError, "failed to load credential")
		return
	}
	if cred == nil || cred.RefreshToken == "" {
		apperr.WriteJsonError(w, apperr.NoRefreshToken, "tenant has no connected mail account")
		return
	}

	sent, err := a.Mailer().Send(r.Context(), cred.RefreshToken, a.Config().Mail.FromAddress, req.To, req.Subject, req.BodyText)
	if err != nil {
		a.Logger().Error("send_email failed", "owner_id", req.OwnerID, "err", err)
		apperr.WriteJsonError(w, apperr.SendError, err.Error())
		return
	}

	if err := a.Db().TouchCredential(req.OwnerID); err != nil {
		a.Logger().Warn("touch credential failed after send", "owner_id", req.OwnerID, "err", err)
	}

	body, _ := json.Marshal(sendEmailResponse{Ok: true, MessageID: sent.MessageID})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
