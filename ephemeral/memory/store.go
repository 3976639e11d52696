// Package memory is the in-process ephemeral.Store used when no Redis is
// configured, and the store the coordination tests run against. Expiry is
// lazy: entries past their deadline are dropped when touched.
package memory

import (
	"context"
	"sync"
	"time"

	"collabdoc-server/ephemeral"
)

type entry struct {
	value    string
	set      map[string]struct{}
	hash     map[string]string
	deadline time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && !now.Before(e.deadline)
}

type store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() ephemeral.Store {
	return &store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// NewStoreWithClock is for tests that need to control expiry.
func NewStoreWithClock(now func() time.Time) ephemeral.Store {
	return &store{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// live returns the entry at key, dropping it first if expired.
func (s *store) live(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *store) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{value: value, deadline: s.deadline(ttl)}
	return nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *store) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		e = &entry{set: make(map[string]struct{})}
		s.entries[key] = e
	}
	e.set[member] = struct{}{}
	e.deadline = s.deadline(ttl)
	return nil
}

func (s *store) SetRemove(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil
	}
	delete(e.set, member)
	if len(e.set) == 0 {
		delete(s.entries, key)
	}
	return nil
}

func (s *store) SetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.set == nil {
		return nil, nil
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	return members, nil
}

func (s *store) HashSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.hash == nil {
		e = &entry{hash: make(map[string]string)}
		s.entries[key] = e
	}
	e.hash[field] = value
	e.deadline = s.deadline(ttl)
	return nil
}

func (s *store) HashDelete(ctx context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.hash == nil {
		return nil
	}
	delete(e.hash, field)
	if len(e.hash) == 0 {
		delete(s.entries, key)
	}
	return nil
}

func (s *store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.hash == nil {
		return nil, nil
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

func (s *store) Close() error {
	return nil
}
