package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/caasmo/dripsched/apperr"
	"github.com/caasmo/dripsched/db"
)

type startOAuthRequest struct {
	OwnerID   string `json:"owner_id"`
	ReturnURL string `json:"return_url"`
}

type startOAuthResponse struct {
	Ok      bool   `json:"ok"`
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// StartOAuthHandler begins the OAuth grant flow.
// Endpoint: POST /oauth/start
func (a *App) StartOAuthHandler(w http.ResponseWriter, r *http.Request) {
	var req startOAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJsonError(w, apperr.Validation, "invalid JSON body")
		return
	}
	if req.OwnerID == "" {
		apperr.WriteJsonError(w, apperr.Validation, "owner_id is required")
		return
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = a.Config().FrontendReturn
	}

	authURL, state, err := a.Exchanger().Start(r.Context(), req.OwnerID, returnURL)
	if err != nil {
		a.Logger().Error("oauth start failed", "err", err)
		apperr.WriteJsonError(w, apperr.DbError, "failed to start oauth flow")
		return
	}

	body, _ := json.Marshal(startOAuthResponse{Ok: true, AuthURL: authURL, State: state})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// OAuthCallbackHandler is the provider's redirect target. It consumes the
// state, exchanges the code, and redirects the browser back to return_url.
// Endpoint: GET /oauth2/callback
func (a *App) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		apperr.WriteJsonError(w, apperr.Validation, "code and state are required")
		return
	}

	result, err := a.Exchanger().Callback(r.Context(), code, state)
	if err != nil {
		a.Logger().Error("oauth callback failed", "err", err)
		if errors.Is(err, db.ErrStateExpired) {
			apperr.WriteJsonError(w, apperr.Validation, "invalid or expired state")
			return
		}
		apperr.WriteJsonError(w, apperr.Auth, "oauth exchange failed")
		return
	}

	redirectURL := result.ReturnURL
	if redirectURL == "" {
		redirectURL = a.Config().FrontendReturn
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		apperr.WriteJsonError(w, apperr.Internal, "invalid return_url")
		return
	}
	q := u.Query()
	q.Set("status", "success")
	q.Set("owner_id", result.OwnerID)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}
