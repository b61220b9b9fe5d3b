package browse

import (
	"fmt"
	"sync"
	"time"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// snapshotTTL bounds how long a saved scroll position stays usable.
const snapshotTTL = 30 * time.Minute

// Snapshot captures accumulated infinite-scroll state so a view can be
// reinstated after navigating away and back.
type Snapshot struct {
	Releases     []domain.Release
	Page         int
	TotalPages   int
	TotalItems   int
	Batches      int
	ScrollOffset int
}

// SnapshotStore holds snapshots keyed by filter fingerprint. A
// snapshot is only handed back when restoration was announced ahead of
// time and the active filters match the saved ones exactly; anything
// else is discarded so stale lists never reappear under new filters.
type SnapshotStore struct {
	snapshots *cache.Cache[Snapshot]

	mu        sync.Mutex // guards expecting
	expecting bool
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: cache.New[Snapshot](snapshotTTL)}
}

// Fingerprint derives the snapshot key from a filter set.
func Fingerprint(f Filters) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", f.Mode, f.Folder, f.Sort, f.Order, f.Query)
}

// Save stores a snapshot for the given filters.
func (s *SnapshotStore) Save(f Filters, snap Snapshot) {
	s.snapshots.Set(Fingerprint(f), snap)
}

// ExpectRestore announces that the next Restore call is a deliberate
// return to a saved view. Without it, Restore always misses.
func (s *SnapshotStore) ExpectRestore() {
	s.mu.Lock()
	s.expecting = true
	s.mu.Unlock()
}

// Restore returns the snapshot for the given filters if restoration
// was expected and one is saved and still fresh. The expectation is
// consumed either way, and a miss drops any stale entry.
func (s *SnapshotStore) Restore(f Filters) (Snapshot, bool) {
	s.mu.Lock()
	expected := s.expecting
	s.expecting = false
	s.mu.Unlock()

	key := Fingerprint(f)
	if !expected {
		s.snapshots.Delete(key)
		return Snapshot{}, false
	}
	snap, ok := s.snapshots.Get(key)
	if !ok {
		return Snapshot{}, false
	}
	s.snapshots.Delete(key)
	return snap, true
}

// Discard drops the snapshot for the given filters.
func (s *SnapshotStore) Discard(f Filters) {
	s.snapshots.Delete(Fingerprint(f))
}
