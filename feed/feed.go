/*
Package feed delivers out-of-band invalidation signals.

PURPOSE:
  When a related record changes elsewhere (settlement terms renegotiated,
  payment posted by another system), affected plan versions may be stale.
  The feed's only contract is: deliver a case id, and the subscriber
  re-fetches that case's versions. Transport is pluggable; the engine does
  not manage it.

IMPLEMENTATIONS:
  - Memory: in-process fan-out for tests and single-node deployments
  - Redis:  pub/sub channel for multi-node deployments (redis.go)
*/
package feed

import (
	"context"
	"sync"

	"github.com/warp/plan-engine/plan"
)

// Handler receives the id of a case whose versions may be invalidated.
type Handler func(caseID plan.CaseID)

// Feed is a subscription to invalidation signals.
type Feed interface {
	Subscribe(ctx context.Context, fn Handler) error
	Close() error
}

// =============================================================================
// MEMORY FEED
// =============================================================================

type Memory struct {
	mu       sync.Mutex
	handlers []Handler
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Subscribe(_ context.Context, fn Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
	return nil
}

// Publish fans a signal out to all subscribers synchronously.
func (m *Memory) Publish(_ context.Context, caseID plan.CaseID) error {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.handlers...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(caseID)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
