package repo

import (
	"context"
	"sync"
	"time"

	"github.com/opsdeck/kube-triage/internal/cache"
)

type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
	lists map[string][][]byte
}

func newStubCache() *stubCache {
	return &stubCache{
		store: make(map[string][]byte),
		lists: make(map[string][][]byte),
	}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	copyValue := append([]byte(nil), value...)
	return copyValue, nil
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.store[key]; exists {
		return false, nil
	}
	s.store[key] = append([]byte(nil), value...)
	return true, nil
}

func (s *stubCache) PushCapped(_ context.Context, key string, value []byte, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([][]byte{append([]byte(nil), value...)}, s.lists[key]...)
	if max > 0 && len(list) > max {
		list = list[:max]
	}
	s.lists[key] = list
	return nil
}

func (s *stubCache) List(_ context.Context, key string, limit int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	delete(s.lists, key)
	return nil
}

func (s *stubCache) Close() error { return nil }
