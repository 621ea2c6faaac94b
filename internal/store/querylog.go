package store

import (
	"sync"

	"github.com/roach88/entrepo/internal/ir"
)

// QueryEntry is one executed plan.
type QueryEntry struct {
	Entity      string       `json:"entity"`
	Kind        string       `json:"kind"`
	SQL         string       `json:"sql"`
	Params      []ir.IRValue `json:"-"`
	Types       []string     `json:"types"`
	Fingerprint string       `json:"fingerprint"`
}

// QueryLogger receives every plan an Executor runs.
type QueryLogger interface {
	LogQuery(entry QueryEntry)
}

// DebugStack is a QueryLogger that keeps every entry in memory.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DebugStack struct {
	mu      sync.Mutex
	entries []QueryEntry
}

// NewDebugStack creates an empty stack.
func NewDebugStack() *DebugStack {
	return &DebugStack{}
}

// LogQuery implements QueryLogger.
func (d *DebugStack) LogQuery(entry QueryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry)
}

// Queries returns a copy of the recorded entries in execution order.
// Returns an empty slice (not nil) when nothing ran.
func (d *DebugStack) Queries() []QueryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]QueryEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of recorded entries.
func (d *DebugStack) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Last returns the most recent entry.
func (d *DebugStack) Last() (QueryEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) == 0 {
		return QueryEntry{}, false
	}
	return d.entries[len(d.entries)-1], true
}

// Reset discards every entry.
func (d *DebugStack) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = nil
}
