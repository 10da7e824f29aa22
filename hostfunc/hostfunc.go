package hostfunc

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a host capability callable from interpreted programs. Arguments and
// results are JSON-compatible values.
type Func func(ctx context.Context, args map[string]any) (any, error)

// ErrUnknownFunction is returned by Call for unregistered names.
type ErrUnknownFunction struct {
	Name string
}

func (e *ErrUnknownFunction) Error() string {
	return fmt.Sprintf("unknown host function %q", e.Name)
}

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// Call invokes the named function.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	fn, ok := r.Get(name)
	if !ok {
		return nil, &ErrUnknownFunction{Name: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, args)
}

// List returns registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
