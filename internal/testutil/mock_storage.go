// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/storage"
)

// MockStorage implements storage.Store for testing
type MockStorage struct {
	blobs map[string]*models.Blob
	mu    sync.RWMutex

	// SaveErr, when set, is returned by every save
	SaveErr error
}

// NewMockStorage creates a new mock storage with default implementations
func NewMockStorage() *MockStorage {
	return &MockStorage{
		blobs: make(map[string]*models.Blob),
	}
}

func (m *MockStorage) SaveBytes(owner, name, contentType string, data []byte) (*models.Blob, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	return m.AddBlob(generateTestID(), owner, name, contentType, data), nil
}

func (m *MockStorage) Get(id string) (*models.Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return blob, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		return storage.ErrNotFound
	}
	delete(m.blobs, id)
	return nil
}

func (m *MockStorage) DeleteOwner(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, blob := range m.blobs {
		if blob.Owner == owner {
			delete(m.blobs, id)
			removed++
		}
	}
	return removed
}

func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddBlob adds a blob directly to the mock
func (m *MockStorage) AddBlob(id, owner, name, contentType string, data []byte) *models.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob := &models.Blob{
		ID:          id,
		Owner:       owner,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
		Data:        data,
	}
	m.blobs[id] = blob
	return blob
}

// Clear removes all blobs
func (m *MockStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string]*models.Blob)
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
