package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/paramapi/internal/domain/model"
	"github.com/okian/paramapi/pkg/metrics"
)

// MemoryStore is an in-memory Store. A single RWMutex guards both maps, so
// item id assignment and check-then-replace on users are atomic.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[int]model.User
	userOrder []int

	items      map[int]model.Item
	itemOrder  []int
	lastItemID int

	metrics bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[int]model.User),
		items:   make(map[int]model.Item),
		metrics: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUser implements Store.GetUser.
func (s *MemoryStore) GetUser(_ context.Context, id int) (model.User, error) {
	defer s.observe("get_user", time.Now())

	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u.Clone(), nil
}

// PutUser implements Store.PutUser.
func (s *MemoryStore) PutUser(_ context.Context, u model.User) (bool, error) {
	defer s.observe("put_user", time.Now())
	if u.ID <= 0 {
		return false, ErrInvalidID
	}

	s.mu.Lock()
	_, existed := s.users[u.ID]
	s.users[u.ID] = u.Clone()
	if !existed {
		s.userOrder = append(s.userOrder, u.ID)
	}
	n := len(s.users)
	s.mu.Unlock()

	s.publishUsers(n)
	return existed, nil
}

// ReplaceUser implements Store.ReplaceUser.
func (s *MemoryStore) ReplaceUser(_ context.Context, id int, u model.User) error {
	defer s.observe("replace_user", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	s.users[id] = u.Clone()
	return nil
}

// ListUsers implements Store.ListUsers.
func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	defer s.observe("list_users", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].Clone())
	}
	return out, nil
}

// CreateItem implements Store.CreateItem.
func (s *MemoryStore) CreateItem(_ context.Context, item model.Item) (model.Item, error) {
	defer s.observe("create_item", time.Now())

	s.mu.Lock()
	// Nothing deletes items, so the counter always equals count+1.
	s.lastItemID++
	item.ID = s.lastItemID
	s.items[item.ID] = item.Clone()
	s.itemOrder = append(s.itemOrder, item.ID)
	n := len(s.items)
	s.mu.Unlock()

	s.publishItems(n)
	return item.Clone(), nil
}

// ListItems implements Store.ListItems.
func (s *MemoryStore) ListItems(_ context.Context) ([]model.Item, error) {
	defer s.observe("list_items", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// Counts implements Store.Counts.
func (s *MemoryStore) Counts(_ context.Context) (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.items)
}

func (s *MemoryStore) observe(op string, start time.Time) {
	if !s.metrics {
		return
	}
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemoryStore) publishUsers(n int) {
	if s.metrics {
		metrics.UpdateUsersTotal(n)
	}
}

func (s *MemoryStore) publishItems(n int) {
	if s.metrics {
		metrics.UpdateItemsTotal(n)
	}
}
