// Package topk tracks the tenants responsible for the most job failures in
// a recent sliding window, for operator triage (spec §3 SUPPLEMENT
// "Operational metrics table"). It never blocks or throttles anything -
// it only answers "who is failing the most right now".
package topk

import (
	"sort"
	"sync"

	"github.com/keilerkonzept/topk/sliding"
)

// Params configures the underlying sliding Count-Min sketch.
type Params struct {
	// K is the number of worst tenants retained.
	K int
	// WindowSize is the sliding window size in ticks.
	WindowSize int
	// Width and Depth size the Count-Min sketch; larger values reduce
	// over-counting at the cost of memory.
	Width int
	Depth int
	// TickSize is the number of failures recorded per tick.
	TickSize uint64
}

// FailureRanking is a thread-safe ranking of tenants by recent failure
// count, fed by Record as failures stream in from the worker.
type FailureRanking struct {
	mu       sync.Mutex
	sketch   *sliding.Sketch
	tickSize uint64
	tickReq  uint64
}

// NewFailureRanking builds a ranking from params.
func NewFailureRanking(params Params) *FailureRanking {
	return &FailureRanking{
		sketch:   sliding.New(params.K, params.WindowSize, sliding.WithWidth(params.Width), sliding.WithDepth(params.Depth)),
		tickSize: params.TickSize,
	}
}

// Record accounts one failure against ownerID, advancing the sliding
// window's internal clock every TickSize calls.
func (r *FailureRanking) Record(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sketch.Incr(ownerID)
	r.tickReq++
	if r.tickReq >= r.tickSize {
		r.tickReq = 0
		r.sketch.Tick()
	}
}

// TenantFailures pairs a tenant with its approximate recent failure count.
type TenantFailures struct {
	OwnerID string `json:"owner_id"`
	Count   uint32 `json:"count"`
}

// Top returns the n worst tenants by recent failure count, highest first.
func (r *FailureRanking) Top(n int) []TenantFailures {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.sketch.SortedSlice()
	sort.Slice(items, func(i, j int) bool { return items[i].Count > items[j].Count })

	if n > len(items) {
		n = len(items)
	}
	out := make([]TenantFailures, n)
	for i := 0; i < n; i++ {
		out[i] = TenantFailures{OwnerID: items[i].Item, Count: items[i].Count}
	}
	return out
}
