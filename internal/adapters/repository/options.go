package repository

import "github.com/okian/paramapi/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetrics toggles gauge and latency reporting to pkg/metrics.
func WithMetrics(enabled bool) Option {
	return func(s *MemoryStore) {
		s.metrics = enabled
	}
}

// WithCapacity pre-sizes the user and item maps.
func WithCapacity(users, items int) Option {
	return func(s *MemoryStore) {
		if users > 0 {
			s.users = make(map[int]model.User, users)
			s.userOrder = make([]int, 0, users)
		}
		if items > 0 {
			s.items = make(map[int]model.Item, items)
			s.itemOrder = make([]int, 0, items)
		}
	}
}
