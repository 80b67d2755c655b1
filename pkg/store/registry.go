package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a connector from connection options.
type Factory func(ctx context.Context, opts ConnectionOptions) (Connector, error)

// Registry maps a connector type tag such as "ARCADEDB" to its factory. It is
// built once at startup and passed to whoever needs to open a connector.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for a tag. Tags are case-insensitive.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToUpper(tag)] = f
}

// New opens a connector of the given type.
func (r *Registry) New(ctx context.Context, tag string, opts ConnectionOptions) (Connector, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToUpper(tag)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownConnector, tag, strings.Join(r.Tags(), ", "))
	}
	return f(ctx, opts)
}

// Tags lists the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for t := range r.factories {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
