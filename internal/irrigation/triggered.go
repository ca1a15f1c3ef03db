package irrigation

import (
	"sync"

	"github.com/clambin/go-common/set"
)

// TriggeredSet remembers which schedules already fired an edge during this process lifetime.
// Entries are never removed.
type TriggeredSet struct {
	mu  sync.Mutex
	ids set.Set[int64]
}

// NewTriggeredSet returns an empty set.
func NewTriggeredSet() *TriggeredSet {
	return &TriggeredSet{ids: set.Create[int64]()}
}

// Contains reports whether id has already been triggered.
func (t *TriggeredSet) Contains(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ids.Contains(id)
}

// Mark records id and reports whether it was new.
func (t *TriggeredSet) Mark(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ids.Contains(id) {
		return false
	}
	t.ids.Add(id)
	return true
}

// Len returns the number of triggered ids.
func (t *TriggeredSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids.List())
}
