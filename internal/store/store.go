// =============================================================================
// SENA Material Requisitions - Record Store
// =============================================================================
//
// This module owns the persisted list of requisition records. The whole list
// is kept in memory and written as one JSON array under a fixed key after
// every change, so there is never a partially written snapshot.
//
// ORDERING:
//   New records are prepended: the most recent record is first.
//
// FAILURE MODEL:
//   - A snapshot that cannot be decoded at startup is logged as
//     ErrStorageReadCorrupt and the store starts empty.
//   - A failed write leaves the in-memory list unchanged.
//
// =============================================================================

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/metrics"
	"github.com/jllhz8912/sena/internal/types"
)

var (
	// ErrStorageReadCorrupt marks a persisted snapshot that could not be decoded.
	ErrStorageReadCorrupt = errors.New("stored records are corrupt")

	// ErrNotFound is returned when a record or material id does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the ordered, persisted collection of records. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	key     string
	logger  *zap.Logger
	records []types.Request
}

// New creates an empty Store over backend. Call Load to read the snapshot.
func New(backend Backend, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, key: key, logger: logger}
}

// Load replaces the in-memory list with the persisted snapshot.
//
// RETURNS:
//   - nil when the snapshot was read, was missing, or was corrupt (the
//     corruption is logged and the store starts empty).
//   - An error if the backend itself failed.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Read(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	if len(data) == 0 {
		return nil
	}

	var records []types.Request
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("starting with an empty store",
			zap.String("key", s.key),
			zap.Error(fmt.Errorf("%w: %v", ErrStorageReadCorrupt, err)),
		)
		return nil
	}

	s.records = records
	s.logger.Debug("store loaded", zap.Int("records", len(records)))
	return nil
}

// All returns a copy of every record, newest first.
func (s *Store) All() []types.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.records)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (types.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return types.Request{}, false
}

// Save persists the current list as is.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, s.records)
}

// ReplaceAll replaces every record. Void records are dropped.
func (s *Store) ReplaceAll(ctx context.Context, records []types.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, withoutVoid(cloneAll(records)))
}

// Add prepends a record.
func (s *Store) Add(ctx context.Context, r types.Request) error {
	return s.AddMany(ctx, []types.Request{r})
}

// AddMany prepends records, keeping their relative order. Void records are
// skipped.
func (s *Store) AddMany(ctx context.Context, records []types.Request) error {
	added := withoutVoid(cloneAll(records))
	if len(added) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]types.Request, 0, len(added)+len(s.records))
	next = append(next, added...)
	next = append(next, s.records...)
	return s.commit(ctx, next)
}

// Replace swaps the record with the same id. A void replacement removes the
// record.
func (s *Store) Replace(ctx context.Context, r types.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(r.ID)
	if i < 0 {
		return fmt.Errorf("record %s: %w", r.ID, ErrNotFound)
	}

	next := cloneAll(s.records)
	next[i] = r.Clone()
	return s.commit(ctx, withoutVoid(next))
}

// Remove deletes the record with the given id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}

	next := make([]types.Request, 0, len(s.records)-1)
	next = append(next, s.records[:i]...)
	next = append(next, s.records[i+1:]...)
	return s.commit(ctx, next)
}

// UpdateMaterial replaces the material with m.ID inside record reqID.
func (s *Store) UpdateMaterial(ctx context.Context, reqID string, m types.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(reqID)
	if i < 0 {
		return fmt.Errorf("record %s: %w", reqID, ErrNotFound)
	}

	next := cloneAll(s.records)
	for j := range next[i].Materials {
		if next[i].Materials[j].ID == m.ID {
			next[i].Materials[j] = m
			return s.commit(ctx, next)
		}
	}
	return fmt.Errorf("material %s in record %s: %w", m.ID, reqID, ErrNotFound)
}

// RemoveMaterial deletes one material. Removing the last material of a
// record removes the record.
//
// RETURNS:
//   - removedRecord: true when the record itself was removed.
func (s *Store) RemoveMaterial(ctx context.Context, reqID, materialID string) (removedRecord bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(reqID)
	if i < 0 {
		return false, fmt.Errorf("record %s: %w", reqID, ErrNotFound)
	}

	next := cloneAll(s.records)
	kept := next[i].Materials[:0]
	found := false
	for _, m := range next[i].Materials {
		if m.ID == materialID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return false, fmt.Errorf("material %s in record %s: %w", materialID, reqID, ErrNotFound)
	}
	next[i].Materials = kept

	removedRecord = next[i].IsVoid()
	if err := s.commit(ctx, withoutVoid(next)); err != nil {
		return false, err
	}
	return removedRecord, nil
}

// Clear deletes every record and the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		metrics.StoreWritesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	metrics.StoreWritesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	s.records = nil
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// commit writes next and, only on success, makes it the current list.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []types.Request) error {
	if next == nil {
		next = []types.Request{}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.backend.Write(ctx, s.key, data); err != nil {
		metrics.StoreWritesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.Error("snapshot write failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	metrics.StoreWritesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	s.records = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(records []types.Request) []types.Request {
	if records == nil {
		return nil
	}
	out := make([]types.Request, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func withoutVoid(records []types.Request) []types.Request {
	out := records[:0]
	for _, r := range records {
		if !r.IsVoid() {
			out = append(out, r)
		}
	}
	return out
}
