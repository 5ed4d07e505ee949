package allocation

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// LockManager provides per-invoice mutual exclusion during commit.
// Acquisition is all-or-nothing over the sorted invoice set; instead
// of blocking, contention surfaces immediately as
// ErrConcurrentAllocation and the caller retries with fresh balances.
type LockManager struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewLockManager() *LockManager {
	return &LockManager{held: make(map[uuid.UUID]struct{})}
}

// TryAcquire locks every invoice in ids or none of them. On success it
// returns a release function that must run on all exit paths.
func (m *LockManager) TryAcquire(ids []uuid.UUID) (func(), error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range sorted {
		if _, taken := m.held[id]; taken {
			return nil, ErrConcurrentAllocation
		}
	}
	for _, id := range sorted {
		m.held[id] = struct{}{}
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range sorted {
			delete(m.held, id)
		}
	}, nil
}
