package storage

import (
	"context"
	"strings"
	"sync"

	apperrors "scribe-eye-go/pkg/errors"
)

// MemoryStore 是进程内的 SnapshotStore，未配置 MinIO 时使用。
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]string)}
}

func (s *MemoryStore) Put(_ context.Context, scriptID string, version uint, content string) (string, error) {
	key := SnapshotKey(scriptID, version)
	s.mu.Lock()
	s.objects[key] = content
	s.mu.Unlock()
	return key, nil
}

func (s *MemoryStore) Get(_ context.Context, objectKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[objectKey]
	if !ok {
		return "", apperrors.New(apperrors.ErrNotFound, "snapshot "+objectKey+" does not exist")
	}
	return content, nil
}

func (s *MemoryStore) DeleteScript(_ context.Context, scriptID string) error {
	prefix := scriptPrefix(scriptID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}
