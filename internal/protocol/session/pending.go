package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/ryverlive/internal/protocol/frame"
)

var ErrDuplicateCall = errors.New("session: duplicate pending call")

// CallKey identifies one outbound frame awaiting its ack.
type CallKey struct {
	ID   string
	Type string
}

// CallResult resolves a pending call exactly once.
type CallResult struct {
	Ack frame.Frame
	Err error
}

// PendingCall is the snapshot view of one outstanding call.
type PendingCall struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	QueuedAt time.Time `json:"queued_at"`
	Deadline time.Time `json:"deadline,omitempty"`
}

type pendingEntry struct {
	info PendingCall
	done chan CallResult
}

// Correlator stores outstanding calls by (id, type). Inserts come from
// callers, resolves from the receiver, so every access takes mu.
type Correlator struct {
	mu     sync.Mutex
	items  map[CallKey]*pendingEntry
	failed error
}

func NewCorrelator() *Correlator {
	return &Correlator{
		items: make(map[CallKey]*pendingEntry),
	}
}

// Register adds a pending call. After FailAll, and until Reset, it returns
// the fail-all reason so no entry can be stranded during teardown.
func (c *Correlator) Register(id, msgType string, queuedAt, deadline time.Time) (<-chan CallResult, error) {
	key := CallKey{ID: id, Type: msgType}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed != nil {
		return nil, c.failed
	}
	if _, ok := c.items[key]; ok {
		return nil, ErrDuplicateCall
	}
	entry := &pendingEntry{
		info: PendingCall{
			ID:       id,
			Type:     msgType,
			QueuedAt: queuedAt,
			Deadline: deadline,
		},
		done: make(chan CallResult, 1),
	}
	c.items[key] = entry
	return entry.done, nil
}

// Resolve delivers an ack to its pending call. It returns false for an
// orphan, which is expected after a client-side timeout.
func (c *Correlator) Resolve(replyTo, replyType string, ack frame.Frame) bool {
	key := CallKey{ID: replyTo, Type: replyType}
	c.mu.Lock()
	entry, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	entry.done <- CallResult{Ack: ack}
	return true
}

func (c *Correlator) Remove(id, msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, CallKey{ID: id, Type: msgType})
}

// FailAll resolves every pending call with reason and clears the table.
func (c *Correlator) FailAll(reason error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = reason
	n := len(c.items)
	for key, entry := range c.items {
		entry.done <- CallResult{Err: reason}
		delete(c.items, key)
	}
	return n
}

// Reset re-opens the table for a new link.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = nil
}

func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Correlator) List() []PendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingCall, 0, len(c.items))
	for _, entry := range c.items {
		out = append(out, entry.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	return out
}
