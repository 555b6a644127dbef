package autosave

import (
	"context"
	"slices"
	"sync"
	"time"

	"censo/internal/domain/service"

	"github.com/google/uuid"
)

type memoryEntry struct {
	snapshot  service.AutoSave
	expiresAt time.Time
}

// MemoryStore is a process-local auto-save store with lazy expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory auto-save store.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Save overwrites the draft's snapshot and resets its expiry.
func (s *MemoryStore) Save(_ context.Context, snapshot *service.AutoSave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *snapshot
	copied.Payload = slices.Clone(snapshot.Payload)
	s.entries[snapshot.DraftID] = memoryEntry{snapshot: copied, expiresAt: s.now().Add(s.ttl)}

	return nil
}

// Load returns the snapshot, or ErrAutoSaveNotFound when it is missing or expired.
func (s *MemoryStore) Load(_ context.Context, draftID uuid.UUID) (*service.AutoSave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[draftID]
	if !ok {
		return nil, service.ErrAutoSaveNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, draftID)

		return nil, service.ErrAutoSaveNotFound
	}

	snapshot := entry.snapshot
	snapshot.Payload = slices.Clone(entry.snapshot.Payload)

	return &snapshot, nil
}

// Delete removes the snapshot.
func (s *MemoryStore) Delete(_ context.Context, draftID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, draftID)

	return nil
}
