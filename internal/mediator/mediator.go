// Package mediator routes typed command and query values to the single handler
// registered for their type.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNoHandler is returned when a request type has no registered handler.
var ErrNoHandler = errors.New("mediator: no handler registered")

// Handler handles one request type and produces one result type.
type Handler[Req any, Res any] interface {
	Handle(ctx context.Context, req Req) (Res, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[Req any, Res any] func(ctx context.Context, req Req) (Res, error)

func (f HandlerFunc[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

type entry struct {
	result reflect.Type
	handle func(ctx context.Context, req any) (any, error)
}

// Mediator is an in-process request dispatcher. Registration happens at startup;
// dispatch is safe for concurrent use.
type Mediator struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]entry
}

// New creates an empty Mediator.
func New() *Mediator {
	return &Mediator{handlers: make(map[reflect.Type]entry)}
}

// Register binds h to the request type Req. Registering a second handler for
// the same request type is a wiring bug and panics.
func Register[Req any, Res any](m *Mediator, h Handler[Req, Res]) {
	if h == nil {
		panic("mediator: nil handler")
	}
	t := typeFor[Req]()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.handlers[t]; dup {
		panic(fmt.Sprintf("mediator: handler already registered for %s", t))
	}
	m.handlers[t] = entry{
		result: typeFor[Res](),
		handle: func(ctx context.Context, req any) (any, error) {
			return h.Handle(ctx, req.(Req))
		},
	}
}

// Send dispatches req to its handler and returns the handler's typed result.
// The handler's error is returned unchanged.
func Send[Req any, Res any](ctx context.Context, m *Mediator, req Req) (Res, error) {
	var zero Res

	e, err := m.lookup(typeFor[Req]())
	if err != nil {
		return zero, err
	}
	if e.result != typeFor[Res]() {
		return zero, fmt.Errorf("mediator: %T is handled with result %s, not %s", req, e.result, typeFor[Res]())
	}

	out, err := e.handle(ctx, req)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	return out.(Res), nil
}

// Dispatch routes an untyped request value. Pointers to registered request
// types are dereferenced.
func (m *Mediator) Dispatch(ctx context.Context, req any) (any, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrNoHandler)
	}

	v := reflect.ValueOf(req)
	e, err := m.lookup(v.Type())
	if err != nil && v.Kind() == reflect.Pointer && !v.IsNil() {
		if e, err = m.lookup(v.Type().Elem()); err == nil {
			req = v.Elem().Interface()
		}
	}
	if err != nil {
		return nil, err
	}
	return e.handle(ctx, req)
}

// Require reports every request type among reqs that has no handler. Call it
// once at startup so missing wiring fails fast instead of at request time.
func (m *Mediator) Require(reqs ...any) error {
	var errs []error
	for _, r := range reqs {
		if _, err := m.lookup(reflect.TypeOf(r)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mediator) lookup(t reflect.Type) (entry, error) {
	m.mu.RLock()
	e, ok := m.handlers[t]
	m.mu.RUnlock()
	if !ok {
		return entry{}, fmt.Errorf("%w for %v", ErrNoHandler, t)
	}
	return e, nil
}

// typeFor returns the reflect.Type for T; equivalent to reflect.TypeFor (Go 1.22+).
func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
