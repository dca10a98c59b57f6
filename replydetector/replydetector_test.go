package replydetector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeCache struct {
	m map[string]bool
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string]bool{}} }

func (f *fakeCache) Get(key string) (bool, bool) {
	v, ok := f.m[key]
	return v, ok
}
func (f *fakeCache) Set(key string, value bool, cost int64) bool {
	f.m[key] = value
	return true
}
func (f *fakeCache) SetWithTTL(key string, value bool, cost int64, ttl time.Duration) bool {
	f.m[key] = value
	return true
}

type header struct {
	Name, Value string
}

func threadServer(t *testing.T, headersByMessage [][]header) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type msg struct {
			ID      string `json:"id"`
			Payload struct {
				Headers []header `json:"headers"`
			} `json:"payload"`
		}
		var messages []msg
		for i, hs := range headersByMessage {
			m := msg{ID: string(rune('a' + i))}
			m.Payload.Headers = hs
			messages = append(messages, m)
		}
		json.NewEncoder(w).Encode(map[string]any{"messages": messages})
	}))
}

func TestReplied_EmptyThreadID(t *testing.T) {
	d := &Detector{}
	if d.Replied(context.Background(), "rt", "", "bob@example.com", 0) {
		t.Fatal("expected false for empty thread id")
	}
}

func TestReplied_MatchAfterWatermark(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	after := since.Add(time.Hour).Format(time.RFC1123Z)

	srv := threadServer(t, [][]header{
		{{Name: "From", Value: "Bob <bob@example.com>"}, {Name: "Date", Value: after}},
	})
	defer srv.Close()

	d := &Detector{ThreadURLFmt: srv.URL + "/%s", HTTPClient: srv.Client()}
	if !d.Replied(context.Background(), "rt", "thread-1", "bob@example.com", since.UnixMilli()) {
		t.Fatal("expected reply to be detected")
	}
}

func TestReplied_BeforeWatermark(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := since.Add(-time.Hour).Format(time.RFC1123Z)

	srv := threadServer(t, [][]header{
		{{Name: "From", Value: "Bob <bob@example.com>"}, {Name: "Date", Value: before}},
	})
	defer srv.Close()

	d := &Detector{ThreadURLFmt: srv.URL + "/%s", HTTPClient: srv.Client()}
	if d.Replied(context.Background(), "rt", "thread-1", "bob@example.com", since.UnixMilli()) {
		t.Fatal("expected no reply before watermark")
	}
}

func TestReplied_ListErrorFailsSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := &Detector{ThreadURLFmt: srv.URL + "/%s", HTTPClient: srv.Client()}
	if d.Replied(context.Background(), "rt", "thread-1", "bob@example.com", 0) {
		t.Fatal("expected fail-safe false on list error")
	}
}

func TestReplied_CacheHit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	fc := newFakeCache()
	d := &Detector{ThreadURLFmt: srv.URL + "/%s", HTTPClient: srv.Client(), Cache: fc}

	d.Replied(context.Background(), "rt", "thread-1", "bob@example.com", 0)
	d.Replied(context.Background(), "rt", "thread-1", "bob@example.com", 0)

	if calls != 1 {
		t.Fatalf("expected thread to be listed once due to cache, got %d calls", calls)
	}
}
