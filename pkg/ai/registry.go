package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderOptions carries every setting a backend may need; each backend
// reads only its own fields.
type ProviderOptions struct {
	APIKey                string `yaml:"apiKey" json:"apiKey"`
	BaseURL               string `yaml:"baseUrl" json:"baseUrl"`
	Model                 string `yaml:"model" json:"model"`
	User                  string `yaml:"user" json:"user"`
	Token                 string `yaml:"token" json:"token"`
	WorkflowURL           string `yaml:"workflowUrl" json:"workflowUrl"`
	MaxConcurrentRequests int64  `yaml:"maxConcurrentRequests" json:"maxConcurrentRequests"`
}

// Factory builds a client from provider options.
type Factory func(opts ProviderOptions) (GraphAIClient, error)

// Registry maps provider tags such as "MOONSHOT" to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for tag. Tags are case-insensitive.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToUpper(tag)] = f
}

// New builds the client registered under tag.
func (r *Registry) New(tag string, opts ProviderOptions) (GraphAIClient, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToUpper(tag)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, tag)
	}
	return f(opts)
}

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
