package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grainco/texture-analyzer/internal/models"
)

// ErrNotFound is returned when a blob id is unknown.
var ErrNotFound = errors.New("blob not found")

// Store defines the interface for preview blob storage.
type Store interface {
	SaveBytes(owner, name, contentType string, data []byte) (*models.Blob, error)
	Get(id string) (*models.Blob, error)
	Delete(id string) error
	DeleteOwner(owner string) int
	Count() int
}

// MemoryStore implements Store in process memory. Nothing is written to disk.
type MemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string]*models.Blob
	maxBytes int64
}

// NewMemoryStore creates a new MemoryStore. maxBytes limits the size of a
// single blob; zero means unlimited.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		blobs:    make(map[string]*models.Blob),
		maxBytes: maxBytes,
	}
}

// SaveBytes stores data under a new id.
func (s *MemoryStore) SaveBytes(owner, name, contentType string, data []byte) (*models.Blob, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("blob %q exceeds %d bytes", name, s.maxBytes)
	}

	blob := &models.Blob{
		ID:          uuid.New().String(),
		Owner:       owner,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
		Data:        data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blob.ID] = blob

	return blob, nil
}

// Get retrieves a blob by id.
func (s *MemoryStore) Get(id string) (*models.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return blob, nil
}

// Delete removes a blob.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.blobs, id)

	return nil
}

// DeleteOwner removes every blob of owner and returns how many were removed.
func (s *MemoryStore) DeleteOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, blob := range s.blobs {
		if blob.Owner == owner {
			delete(s.blobs, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of stored blobs.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
