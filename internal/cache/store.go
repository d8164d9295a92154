// Package cache keeps the last known claim statuses and synchronization results of a provider.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

// Store is the per-provider cache. It is owned by a single provider instance.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]core.ClaimStatus
	lastSync *core.SyncResult
}

func New() *Store {
	return &Store{
		statuses: make(map[string]core.ClaimStatus),
	}
}

func (s *Store) PutStatus(status core.ClaimStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.ClaimID] = status
}

// Status returns the cached status of claimID.
func (s *Store) Status(claimID string) (core.ClaimStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[claimID]
	return st, ok
}

// Statuses returns the number of cached claim statuses.
func (s *Store) Statuses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}

// PutSyncResult stores the result of a synchronization. Results of one data type
// missing in the new result are kept from the previous one.
func (s *Store) PutSyncResult(res core.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[core.DataType]json.RawMessage, len(res.Data))
	if s.lastSync != nil {
		for dt, data := range s.lastSync.Data {
			merged[dt] = data
		}
	}
	for dt, data := range res.Data {
		merged[dt] = data
	}
	res.Data = merged
	s.lastSync = &res
}

// LastSync returns the last stored synchronization result.
func (s *Store) LastSync() (core.SyncResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return core.SyncResult{}, false
	}
	return *s.lastSync, true
}

// LastSyncAt returns the timestamp of the last synchronization, or nil.
func (s *Store) LastSyncAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil
	}
	ts := s.lastSync.Timestamp
	return &ts
}

// Purge drops everything cached.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = make(map[string]core.ClaimStatus)
	s.lastSync = nil
}
