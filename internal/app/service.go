// Package service provides the business service behind the HTTP API.
package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	repository "github.com/okian/paramapi/internal/adapters/repository"
	"github.com/okian/paramapi/internal/domain/model"
	"github.com/okian/paramapi/pkg/logger"
	"github.com/okian/paramapi/pkg/metrics"
)

const tracerName = "github.com/okian/paramapi/internal/app"

// Service implements the API dependencies over a repository.Store.
type Service struct {
	store  repository.Store
	logger logger.Logger
	tracer trace.Tracer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the store. Defaults to a fresh MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service.
func New(opts ...Option) *Service {
	s := &Service{
		logger: logger.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// GetUser returns the user stored under id. A miss wraps repository.ErrUserNotFound.
func (s *Service) GetUser(ctx context.Context, id int) (model.User, error) {
	const op = "service.get_user"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int("user.id", id)))
	defer span.End()

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		metrics.RecordUserNotFound()
		s.logger.Debug(ctx, "user lookup missed", logger.Int("user_id", id))
		return model.User{}, s.fail(span, op, err)
	}
	return u, nil
}

// ListUsers filters users in insertion order and returns the requested window.
func (s *Service) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	const op = "service.list_users"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int("filter.skip", f.Skip),
		attribute.Int("filter.limit", f.Limit),
		attribute.StringSlice("filter.tags", f.Tags),
	))
	defer span.End()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, s.fail(span, op, err)
	}
	out := f.Apply(users)
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// CreateUser stores u under u.ID, silently replacing an existing user.
func (s *Service) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	const op = "service.create_user"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int("user.id", u.ID)))
	defer span.End()

	u = u.Clone()
	existed, err := s.store.PutUser(ctx, u)
	if err != nil {
		return model.User{}, s.fail(span, op, err)
	}
	if existed {
		metrics.RecordUserOverwrite()
		s.logger.Info(ctx, "user overwritten by create", logger.Int("user_id", u.ID))
	}
	return u, nil
}

// UpdateUser replaces the user stored under id with u. The stored value keeps
// the id carried by u; the key stays id.
func (s *Service) UpdateUser(ctx context.Context, id int, u model.User) (model.User, error) {
	const op = "service.update_user"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int("user.id", id),
		attribute.Int("body.id", u.ID),
	))
	defer span.End()

	u = u.Clone()
	if err := s.store.ReplaceUser(ctx, id, u); err != nil {
		metrics.RecordUserNotFound()
		return model.User{}, s.fail(span, op, err)
	}
	return u, nil
}

// CreateItem stores item with the next item id.
func (s *Service) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	const op = "service.create_item"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	created, err := s.store.CreateItem(ctx, item.Clone())
	if err != nil {
		return model.Item{}, s.fail(span, op, err)
	}
	span.SetAttributes(attribute.Int("item.id", created.ID))
	return created, nil
}

// SearchItems returns items matching q in creation order.
func (s *Service) SearchItems(ctx context.Context, q model.ItemQuery) ([]model.Item, error) {
	const op = "service.search_items"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, s.fail(span, op, err)
	}
	out := q.Apply(items)
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// GetStats reports entity counts.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	users, items := s.store.Counts(ctx)
	return map[string]any{
		"users": users,
		"items": items,
	}
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%s: %w", op, err)
}
