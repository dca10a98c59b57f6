// Package replydetector implements the reply-suppression check described in
// spec §4.C: has the recipient replied to a sequence's thread since the
// last send.
package replydetector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/caasmo/dripsched/cache"
)

const maxMessages = 20

// Detector lists a thread's messages and inspects From/Date headers. A
// short-TTL cache avoids re-listing the same thread multiple times within
// one worker batch; entries are never trusted across a restart.
type Detector struct {
	OAuthConfig   *oauth2.Config
	ThreadURLFmt  string // fmt.Sprintf pattern taking threadID, e.g. ".../threads/%s?format=metadata"
	HTTPClient    *http.Client
	Cache         cache.Cache[string, bool]
	CacheTTL      time.Duration
}

type messageMeta struct {
	from string
	date time.Time
}

// Replied reports whether recipientEmail has replied in threadID strictly
// after sinceMs. A null/empty threadID means "no reply possible to check"
// (spec §4.F edge case) and always returns false. Any list-level error is a
// fail-safe false - the system prefers an unwanted follow-up over stalling
// a sequence on a transient provider error.
func (d *Detector) Replied(ctx context.Context, refreshToken, threadID, recipientEmail string, sinceMs int64) bool {
	if threadID == "" {
		return false
	}

	cacheKey := threadID + ":" + strconv.FormatInt(sinceMs, 10)
	if d.Cache != nil {
		if v, ok := d.Cache.Get(cacheKey); ok {
			return v
		}
	}

	messages, err := d.listThread(ctx, refreshToken, threadID)
	if err != nil {
		slog.Warn("replydetector: list thread failed, assuming no reply", "thread_id", threadID, "err", err)
		return false
	}

	since := time.UnixMilli(sinceMs)
	recipient := strings.ToLower(recipientEmail)

	replied := false
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.from), recipient) && m.date.After(since) {
			replied = true
			break
		}
	}

	if d.Cache != nil {
		ttl := d.CacheTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		d.Cache.SetWithTTL(cacheKey, replied, 1, ttl)
	}

	return replied
}

func (d *Detector) listThread(ctx context.Context, refreshToken, threadID string) ([]messageMeta, error) {
	httpClient := d.HTTPClient
	if httpClient == nil {
		token := &oauth2.Token{RefreshToken: refreshToken}
		httpClient = d.OAuthConfig.Client(ctx, token)
	}

	url := fmt.Sprintf(d.ThreadURLFmt, threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("list thread: status %d", resp.StatusCode)
	}

	var payload struct {
		Messages []struct {
			ID      string `json:"id"`
			Payload struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode thread: %w", err)
	}

	var out []messageMeta
	for i, msg := range payload.Messages {
		if i >= maxMessages {
			break
		}
		var from, dateRaw string
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				from = h.Value
			case "Date":
				dateRaw = h.Value
			}
		}
		date, err := time.Parse(time.RFC1123Z, dateRaw)
		if err != nil {
			slog.Warn("replydetector: skipping message with unparseable date", "message_id", msg.ID, "err", err)
			continue
		}
		out = append(out, messageMeta{from: from, date: date})
	}
	return out, nil
}
