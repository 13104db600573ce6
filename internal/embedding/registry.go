package embedding

import (
	"fmt"
	"sort"
)

// Options carries free-form settings forwarded to an encode strategy loader.
// Strategies read the fields they understand and ignore the rest.
type Options struct {
	Model      string // remote model identifier (openai)
	ModelPath  string // local model file (onnx)
	Dimensions int
	MaxTokens  int
}

// Factory constructs an Encoder from options.
type Factory func(opts Options) (Encoder, error)

// Registry maps embedder type identifiers to encoder factories. Strategies
// are registered explicitly at startup; there is no package-level table.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("encoder %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New constructs the encoder registered under name.
func (r *Registry) New(name string, opts Options) (Encoder, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown encoder type: %s (registered: %v)", name, r.Types())
	}
	return factory(opts)
}

// Types returns the registered type identifiers, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// DefaultRegistry returns a registry with the built-in strategies: "mock"
// (deterministic hash vectors), "openai" (OpenAI embeddings API), and "onnx"
// (local ONNX model; requires CGO).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("mock", func(opts Options) (Encoder, error) {
		return NewMockEncoder(opts.Dimensions), nil
	})
	_ = r.Register("openai", func(opts Options) (Encoder, error) {
		return NewOpenAIEncoder(opts)
	})
	_ = r.Register("onnx", func(opts Options) (Encoder, error) {
		return NewONNXEncoder(opts)
	})
	return r
}
