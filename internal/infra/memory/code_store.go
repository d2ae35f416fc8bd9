package memory

import (
	"context"
	"sync"
)

// CodeStore is an in-memory implementation of app.CodeStore for single-instance deployments.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewCodeStore() *CodeStore {
	return &CodeStore{
		codes: make(map[string]struct{}),
	}
}

// Reserve claims code and reports false when it is already held.
func (s *CodeStore) Reserve(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; ok {
		return false, nil
	}
	s.codes[code] = struct{}{}
	return true, nil
}

func (s *CodeStore) Release(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

// Len reports how many codes are currently reserved.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
