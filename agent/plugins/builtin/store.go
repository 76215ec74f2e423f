package builtin

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/BaSui01/aicli/internal/cache"
)

// ResponseStore keeps generated responses by cache key.
type ResponseStore interface {
	// Get returns the stored response. ok is false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores a response for ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Clear removes every stored response.
	Clear(ctx context.Context) error
}

// MemoryResponseStore is a bounded in-process ResponseStore.
// When full, the least recently used entry is evicted.
type MemoryResponseStore struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

type memoryEntry struct {
	key     string
	value   string
	expires time.Time
}

// NewMemoryResponseStore creates a store holding at most maxEntries
// responses. maxEntries <= 0 means unbounded.
func NewMemoryResponseStore(maxEntries int) *MemoryResponseStore {
	return &MemoryResponseStore{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get implements ResponseStore.
func (s *MemoryResponseStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return "", false, nil
	}
	e := el.Value.(*memoryEntry)
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.removeLocked(el)
		return "", false, nil
	}
	s.ll.MoveToFront(el)
	return e.value, true, nil
}

// Set implements ResponseStore.
func (s *MemoryResponseStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	if el, ok := s.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expires = value, expires
		s.ll.MoveToFront(el)
		return nil
	}
	s.items[key] = s.ll.PushFront(&memoryEntry{key: key, value: value, expires: expires})
	for s.maxEntries > 0 && s.ll.Len() > s.maxEntries {
		s.removeLocked(s.ll.Back())
	}
	return nil
}

// Clear implements ResponseStore.
func (s *MemoryResponseStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ll.Init()
	s.items = make(map[string]*list.Element)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryResponseStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

func (s *MemoryResponseStore) removeLocked(el *list.Element) {
	s.ll.Remove(el)
	delete(s.items, el.Value.(*memoryEntry).key)
}

// RedisResponseStore shares cached responses across processes through the
// Redis cache manager. Expiry is handled by Redis.
type RedisResponseStore struct {
	manager *cache.Manager
}

// NewRedisResponseStore wraps a cache manager.
func NewRedisResponseStore(manager *cache.Manager) *RedisResponseStore {
	return &RedisResponseStore{manager: manager}
}

// Get implements ResponseStore.
func (s *RedisResponseStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.manager.Get(ctx, key)
	if cache.IsCacheMiss(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

// Set implements ResponseStore. A non-positive ttl falls back to the
// manager's default TTL.
func (s *RedisResponseStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.manager.Set(ctx, key, []byte(value), ttl)
}

// Clear implements ResponseStore.
func (s *RedisResponseStore) Clear(ctx context.Context) error {
	_, err := s.manager.Clear(ctx)
	return err
}
