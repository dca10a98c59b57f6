// Package mail builds and transmits one message on behalf of a connected
// tenant mail account (spec §4.B).
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Sent is the result of a successful send; either field may be empty if the
// provider omitted it.
type Sent struct {
	MessageID string
	ThreadID  string
}

// Sender submits RFC 5322 messages to a provider's REST send endpoint,
// authenticating with a per-call access token obtained from the tenant's
// stored refresh token. The provider SDK is treated as an opaque
// collaborator; this package only builds the raw message and performs the
// exchange/POST itself, since the target surface is a single REST call.
type Sender struct {
	OAuthConfig  *oauth2.Config
	SendEndpoint string
	HTTPClient   *http.Client
}

// Send builds a plain-text message and submits it as the base64url "raw"
// field of a send request, using a token source derived from refreshToken.
func (s *Sender) Send(ctx context.Context, refreshToken, from, to, subject, bodyText string) (*Sent, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("mail: empty refresh token")
	}

	raw := Encode(Build(from, to, subject, bodyText))

	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return nil, fmt.Errorf("mail: encode request: %w", err)
	}

	httpClient := s.HTTPClient
	if httpClient == nil {
		token := &oauth2.Token{RefreshToken: refreshToken}
		httpClient = s.OAuthConfig.Client(ctx, token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.SendEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mail: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("mail: transient provider error: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mail: permanent provider error: status %d", resp.StatusCode)
	}

	var out struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mail: decode response: %w", err)
	}

	return &Sent{MessageID: out.ID, ThreadID: out.ThreadID}, nil
}

// Build assembles the message headers and body, joined by "\n", exactly as
// spec §4.B describes - blank value body_text renders an empty line rather
// than being omitted.
func Build(from, to, subject, bodyText string) string {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		bodyText,
	}
	return strings.Join(lines, "\n")
}

// Encode applies the provider's base64url variant: '+' -> '-', '/' -> '_',
// trailing '=' padding stripped.
func Encode(message string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(message))
}
