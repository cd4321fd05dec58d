package cart

import (
	"context"
	"sync"
	"time"
)

// Store persists carts by id.
type Store interface {
	Create(ctx context.Context, c Cart) error
	Get(ctx context.Context, id string) (Cart, error)
	// Update loads the cart, applies fn and saves the result atomically with
	// respect to other updates of the same cart. Nothing is saved when fn fails.
	Update(ctx context.Context, id string, fn func(*Cart) error) (Cart, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]memoryEntry
	TTL   time.Duration
	Now   func() time.Time
}

type memoryEntry struct {
	cart      Cart
	expiresAt time.Time
}

// NewMemoryStore constructs an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{carts: map[string]memoryEntry{}, TTL: ttl}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) put(c Cart) {
	var expires time.Time
	if s.TTL > 0 {
		expires = s.now().Add(s.TTL)
	}
	if s.carts == nil {
		s.carts = map[string]memoryEntry{}
	}
	s.carts[c.ID] = memoryEntry{cart: cloneCart(c), expiresAt: expires}
}

func (s *MemoryStore) load(id string) (Cart, bool) {
	entry, ok := s.carts[id]
	if !ok {
		return Cart{}, false
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.carts, id)
		return Cart{}, false
	}
	return cloneCart(entry.cart), true
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(c)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.load(id)
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Cart) error) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.load(id)
	if !ok {
		return Cart{}, ErrNotFound
	}
	if err := fn(&c); err != nil {
		return Cart{}, err
	}
	s.put(c)
	return c, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}

func cloneCart(c Cart) Cart {
	out := c
	if c.Items != nil {
		out.Items = append([]LineItem(nil), c.Items...)
	}
	if c.Promotion != nil {
		p := *c.Promotion
		out.Promotion = &p
	}
	return out
}
