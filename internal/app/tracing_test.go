package service_test

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	repository "github.com/okian/paramapi/internal/adapters/repository"
	service "github.com/okian/paramapi/internal/app"
	"github.com/okian/paramapi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// memTracer keeps every span it starts in memory.
type memTracer struct {
	embedded.Tracer

	mu    sync.Mutex
	spans []*memSpan
}

func (t *memTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &memSpan{name: name, attrs: cfg.Attributes()}
	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

func (t *memTracer) byName(name string) *memSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.spans {
		if s.name == name {
			return s
		}
	}
	return nil
}

type memSpan struct {
	noop.Span

	name   string
	attrs  []attribute.KeyValue
	errs   []error
	status codes.Code
	ended  bool
}

func (s *memSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}

func (s *memSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *memSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

func (s *memSpan) End(...trace.SpanEndOption) {
	s.ended = true
}

func (s *memSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestService_Tracing(t *testing.T) {
	Convey("Given a service with an in-memory tracer", t, func() {
		ctx := context.Background()
		tracer := &memTracer{}
		svc := service.New(
			service.WithTracer(tracer),
			service.WithStore(repository.NewMemoryStore(repository.WithMetrics(false))),
		)

		Convey("When a user is fetched that does not exist", func() {
			_, err := svc.GetUser(ctx, 42)
			So(err, ShouldNotBeNil)
			span := tracer.byName("service.get_user")

			Convey("Then the span carries the id and the error", func() {
				So(span, ShouldNotBeNil)
				So(span.ended, ShouldBeTrue)
				id, ok := span.attr("user.id")
				So(ok, ShouldBeTrue)
				So(id.AsInt64(), ShouldEqual, 42)
				So(len(span.errs), ShouldEqual, 1)
				So(span.status, ShouldEqual, codes.Error)
			})
		})

		Convey("When an item is created", func() {
			_, err := svc.CreateItem(ctx, model.Item{Name: "Laptop", Price: 1200})
			So(err, ShouldBeNil)
			span := tracer.byName("service.create_item")

			Convey("Then the span records the assigned id without an error", func() {
				So(span, ShouldNotBeNil)
				id, ok := span.attr("item.id")
				So(ok, ShouldBeTrue)
				So(id.AsInt64(), ShouldEqual, 1)
				So(span.errs, ShouldBeEmpty)
				So(span.status, ShouldEqual, codes.Unset)
			})
		})

		Convey("When users are listed", func() {
			_, err := svc.ListUsers(ctx, model.UserFilter{Limit: 10})
			So(err, ShouldBeNil)
			span := tracer.byName("service.list_users")

			Convey("Then the result count is attached", func() {
				So(span, ShouldNotBeNil)
				n, ok := span.attr("result.count")
				So(ok, ShouldBeTrue)
				So(n.AsInt64(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a nil tracer option", t, func() {
		svc := service.New(service.WithTracer(nil))

		Convey("Then the global tracer is kept", func() {
			_, err := svc.SearchItems(context.Background(), model.ItemQuery{})
			So(err, ShouldBeNil)
		})
	})
}
