/*
Package grid provides the interactive schedule editor state machine.

PURPOSE:
  Models the spreadsheet-style editing of a generated schedule: single-cell
  selection, fill-handle drag, per-keystroke edit buffers with debounced
  recompute, row add/delete, and the staleness discipline that keeps rapid
  overlapping async recalculations consistent.

CONCURRENCY MODEL:
  The editor is event-driven: UI events, debounce timers, and network
  callbacks. UI events and the debounce timer run on different goroutines,
  so the controller serializes every state access through one mutex; the
  recompute callback runs outside the lock on a row snapshot. Only the most
  recently issued async call may mutate visible state (see StalenessGuard).

KEY FILES:
  - staleness.go: Sequence-number guard for async results (this file)
  - debounce.go:  Cancelable timer capability
  - state.go:     EditorState value object and cell addressing
  - controller.go: Named transitions over the state
  - undo.go:      Tentative-change buffer for optimistic updates
*/
package grid

import "sync"

// =============================================================================
// STALENESS GUARD - Only the latest-issued async result may apply
// =============================================================================

// StalenessGuard is a monotonically increasing counter. Issue() immediately
// before starting an async request and keep the returned sequence; Accept()
// on completion reports whether the result is still current. Stale results,
// stale errors included, are discarded silently.
type StalenessGuard struct {
	mu      sync.Mutex
	current uint64
}

// Issue increments and returns the current sequence number.
func (g *StalenessGuard) Issue() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	return g.current
}

// Accept reports whether a result captured at seq is still the latest.
func (g *StalenessGuard) Accept(seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return seq == g.current
}

// Invalidate supersedes every outstanding request without issuing a new one.
// Used when the active version changes or the editor closes.
func (g *StalenessGuard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
}
