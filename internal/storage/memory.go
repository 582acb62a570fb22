package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const memoryBaseURL = "https://memory.s3.local.amazonaws.com"

// Object is a blob held by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process ImageStore. It backs local development when no
// bucket is configured, and tests.
type MemoryStore struct {
	objects map[string]Object
	mu      sync.RWMutex
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
	}
}

// Upload stores a copy of body under key.
func (s *MemoryStore) Upload(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(body))
	copy(data, body)
	s.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

// PresignGet returns a pseudo-signed URL carrying the expiry time.
func (s *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s?expires=%d", s.URL(key), time.Now().Add(ttl).Unix()), nil
}

// Delete removes key. Deleting a missing key is not an error, matching S3.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// URL returns the reference for key.
func (s *MemoryStore) URL(key string) string {
	return memoryBaseURL + "/" + key
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}
