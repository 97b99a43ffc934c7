// Package store provides in-memory implementations of the plan stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	versions map[plan.VersionID]plan.PlanVersion
	fees     map[plan.ItemID][]plan.WireFee
	numbers  map[plan.CaseID]int
}

func NewMemory() *Memory {
	return &Memory{
		versions: make(map[plan.VersionID]plan.PlanVersion),
		fees:     make(map[plan.ItemID][]plan.WireFee),
		numbers:  make(map[plan.CaseID]int),
	}
}

func copyVersion(v plan.PlanVersion) plan.PlanVersion {
	items := make([]plan.ScheduleItem, len(v.Items))
	copy(items, v.Items)
	v.Items = items
	return v
}

func (m *Memory) SaveVersion(_ context.Context, v plan.PlanVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.versions[v.ID]; exists {
		return plan.ErrPersistenceConflict
	}
	m.versions[v.ID] = copyVersion(v)
	if v.VersionNumber > m.numbers[v.CaseID] {
		m.numbers[v.CaseID] = v.VersionNumber
	}
	return nil
}

func (m *Memory) GetVersion(_ context.Context, id plan.VersionID) (*plan.PlanVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, plan.ErrVersionNotFound
	}
	out := copyVersion(v)
	return &out, nil
}

func (m *Memory) ListVersions(_ context.Context, caseID plan.CaseID) ([]plan.PlanVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []plan.PlanVersion
	for _, v := range m.versions {
		if v.CaseID == caseID {
			result = append(result, copyVersion(v))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VersionNumber > result[j].VersionNumber
	})
	return result, nil
}

func (m *Memory) UpdateVersionStatus(_ context.Context, id plan.VersionID, status plan.VersionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return plan.ErrVersionNotFound
	}
	v.Status = status
	m.versions[id] = v
	return nil
}

func (m *Memory) ReplaceItems(_ context.Context, id plan.VersionID, items []plan.ScheduleItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return plan.ErrVersionNotFound
	}
	replaced := make([]plan.ScheduleItem, len(items))
	copy(replaced, items)
	v.Items = replaced
	m.versions[id] = v
	return nil
}

func (m *Memory) UpdateItemStatus(_ context.Context, id plan.ItemID, status plan.ItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for vid, v := range m.versions {
		for i, it := range v.Items {
			if it.ID == id {
				v.Items[i].Status = status
				m.versions[vid] = v
				return nil
			}
		}
	}
	return plan.ErrItemNotFound
}

func (m *Memory) SetPrimary(_ context.Context, caseID plan.CaseID, id plan.VersionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.versions[id]
	if !ok || target.CaseID != caseID {
		return plan.ErrVersionNotFound
	}
	for vid, v := range m.versions {
		if v.CaseID != caseID {
			continue
		}
		v.IsPrimary = vid == id
		m.versions[vid] = v
	}
	return nil
}

func (m *Memory) DeleteVersion(_ context.Context, id plan.VersionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return plan.ErrVersionNotFound
	}
	delete(m.versions, id)
	return nil
}

func (m *Memory) NextVersionNumber(_ context.Context, caseID plan.CaseID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[caseID]++
	return m.numbers[caseID], nil
}

// =============================================================================
// WIRE FEES
// =============================================================================

func (m *Memory) AddWireFee(_ context.Context, fee plan.WireFee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees[fee.ScheduleItemID] = append(m.fees[fee.ScheduleItemID], fee)
	return nil
}

func (m *Memory) ReassignWireFees(_ context.Context, from, to plan.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := m.fees[from]
	if len(moved) == 0 {
		return nil
	}
	for i := range moved {
		moved[i].ScheduleItemID = to
	}
	m.fees[to] = append(m.fees[to], moved...)
	delete(m.fees, from)
	return nil
}

func (m *Memory) ListWireFees(_ context.Context, itemID plan.ItemID) ([]plan.WireFee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]plan.WireFee, len(m.fees[itemID]))
	copy(result, m.fees[itemID])
	return result, nil
}
