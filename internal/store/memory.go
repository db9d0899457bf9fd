package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps payloads in process memory; contents are lost on exit.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Key][]byte)}
}

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Persist(_ context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = append([]byte(nil), payload...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, key.Username, key.Action)
	}
	return append([]byte(nil), out...), nil
}

// Keys lists stored keys for usernames with the given prefix, sorted by
// username then action.
func (s *MemoryStore) Keys(prefix string) []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.data))
	for k := range s.data {
		if prefix == "" || strings.HasPrefix(k.Username, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Username != keys[j].Username {
			return keys[i].Username < keys[j].Username
		}
		return keys[i].Action < keys[j].Action
	})
	return keys
}
