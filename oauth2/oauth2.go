// Package oauth2 implements the OAuth grant exchanger (spec §4.H): the
// authorization-code dance that connects a tenant's mail account and stores
// its refresh token.
package oauth2

import (
	"context"
	"fmt"
	"time"

	oauth2lib "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/caasmo/dripsched/crypto"
	"github.com/caasmo/dripsched/db"
)

// DefaultStateTTL is the single-use nonce lifetime (spec §4.H, "15-minute
// TTL").
const DefaultStateTTL = 15 * time.Minute

// Exchanger drives /oauth/start and /oauth2/callback.
type Exchanger struct {
	Config   *oauth2lib.Config
	Store    db.DbApp
	StateTTL time.Duration

	// group coalesces concurrent callback exchanges racing on the same
	// state, since a double exchange would consume the authorization
	// code twice and the second attempt would fail at the provider.
	group singleflight.Group
}

// Start begins the flow: persists a single-use state nonce and returns the
// provider's authorization URL. prompt=consent is required - without it the
// provider may omit refresh_token on a re-grant.
func (e *Exchanger) Start(ctx context.Context, ownerID, returnURL string) (authURL, state string, err error) {
	ttl := e.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	state = crypto.Oauth2State()
	err = e.Store.InsertOAuthState(db.OAuthState{
		State:     state,
		OwnerID:   ownerID,
		ReturnURL: returnURL,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return "", "", fmt.Errorf("oauth2: persist state: %w", err)
	}

	authURL = e.Config.AuthCodeURL(state, oauth2lib.AccessTypeOffline, oauth2lib.ApprovalForce)
	return authURL, state, nil
}

// CallbackResult is what the caller needs to build the redirect to
// return_url.
type CallbackResult struct {
	OwnerID   string
	ReturnURL string
	Email     string
}

// Callback consumes state, exchanges code for tokens, decodes the ID
// token's email claim, and upserts the tenant's credential.
func (e *Exchanger) Callback(ctx context.Context, code, state string) (*CallbackResult, error) {
	v, err, _ := e.group.Do(state, func() (any, error) {
		return e.callback(ctx, code, state)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CallbackResult), nil
}

func (e *Exchanger) callback(ctx context.Context, code, state string) (*CallbackResult, error) {
	st, err := e.Store.ConsumeOAuthState(state)
	if err != nil {
		return nil, fmt.Errorf("oauth2: consume state: %w", err)
	}

	token, err := e.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth2: exchange code: %w", err)
	}

	email, err := extractEmail(token)
	if err != nil {
		return nil, fmt.Errorf("oauth2: extract email: %w", err)
	}

	if err := e.Store.UpsertCredential(st.OwnerID, email, token.RefreshToken); err != nil {
		return nil, fmt.Errorf("oauth2: upsert credential: %w", err)
	}

	return &CallbackResult{OwnerID: st.OwnerID, ReturnURL: st.ReturnURL, Email: email}, nil
}

func extractEmail(token *oauth2lib.Token) (string, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("token response carries no id_token")
	}

	claims, err := crypto.DecodeIDTokenUnverified(raw)
	if err != nil {
		return "", err
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", fmt.Errorf("id_token carries no email claim")
	}
	return email, nil
}
