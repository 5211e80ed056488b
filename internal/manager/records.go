package manager

import (
	"fmt"
	"sync"
	"time"

	"servingd/pkg/types"
)

// ProcessRegistry maps a model key to its live serving record. It holds at
// most one record per key; callers receive copies.
type ProcessRegistry struct {
	mu      sync.RWMutex
	records map[types.ModelKey]ServingRecord
}

// NewProcessRegistry returns an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{records: make(map[types.ModelKey]ServingRecord)}
}

func (r *ProcessRegistry) Get(key types.ModelKey) (ServingRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Put stores rec under key. It refuses to overwrite a live record, which
// would orphan that record's port and process.
func (r *ProcessRegistry) Put(key types.ModelKey, rec ServingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; ok {
		return fmt.Errorf("record for %s already exists", key)
	}
	rec.Key = key
	r.records[key] = rec
	return nil
}

// Remove deletes and returns the record for key.
func (r *ProcessRegistry) Remove(key types.ModelKey) (ServingRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if ok {
		delete(r.records, key)
	}
	return rec, ok
}

// removeIf deletes the record for key only when match accepts it.
func (r *ProcessRegistry) removeIf(key types.ModelKey, match func(ServingRecord) bool) (ServingRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok || !match(rec) {
		return ServingRecord{}, false
	}
	delete(r.records, key)
	return rec, true
}

// Touch refreshes LastAccess for key and returns the updated record.
func (r *ProcessRegistry) Touch(key types.ModelKey, now time.Time) (ServingRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return ServingRecord{}, false
	}
	rec.LastAccess = now
	r.records[key] = rec
	return rec, true
}

// All returns a snapshot of every record.
func (r *ProcessRegistry) All() []ServingRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServingRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// LeastRecentlyUsed returns the key with the oldest LastAccess.
func (r *ProcessRegistry) LeastRecentlyUsed() (types.ModelKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		lru   ServingRecord
		found bool
	)
	for _, rec := range r.records {
		if !found || rec.LastAccess.Before(lru.LastAccess) {
			lru = rec
			found = true
		}
	}
	return lru.Key, found
}

func (r *ProcessRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
