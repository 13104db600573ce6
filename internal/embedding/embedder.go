package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Encoder turns a batch of texts into embedding vectors. Implementations wrap
// a concrete embedding model; construction happens through a Registry.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Embedder resolves text embeddings through a per-type VectorCache backed by
// an injected Encoder. Misses are encoded in a single batch and written back
// to the in-memory cache; persistence happens only on an explicit Dump.
type Embedder struct {
	appPath      string
	embedderType string
	encoder      Encoder
	logger       *zap.Logger

	mu    sync.RWMutex
	cache *VectorCache
}

// NewEmbedder builds the cache for (appPath, embedderType) and constructs the
// encode strategy registered under embedderType with the given options.
func NewEmbedder(appPath, embedderType string, registry *Registry, opts Options, logger *zap.Logger) (*Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := NewVectorCache(appPath, embedderType)
	if err != nil {
		return nil, err
	}
	encoder, err := registry.New(embedderType, opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		appPath:      appPath,
		embedderType: embedderType,
		cache:        cache,
		encoder:      encoder,
		logger:       logger,
	}, nil
}

// Type returns the embedder type identifier.
func (e *Embedder) Type() string {
	return e.embedderType
}

// Dimensions returns the encoder's output dimensionality.
func (e *Embedder) Dimensions() int {
	return e.encoder.Dimensions()
}

// CacheSize returns the number of texts currently cached.
func (e *Embedder) CacheSize() int {
	return e.vectorCache().Len()
}

// vectorCache returns the current cache instance. ClearCache swaps the
// instance, so callers must not hold the returned pointer across calls.
func (e *Embedder) vectorCache() *VectorCache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cache
}

// GetEncodings returns one vector per input text, in input order. Cached
// texts are served from the cache; the remaining texts are encoded in a
// single batch (duplicates collapsed) and written back to the cache. The
// encoder is never invoked with an empty batch.
func (e *Embedder) GetEncodings(ctx context.Context, texts []string) ([][]float32, error) {
	cache := e.vectorCache()
	encoded := make([][]float32, len(texts))

	var missing []string
	seen := make(map[string]bool)
	for i, text := range texts {
		if vec, ok := cache.Get(text); ok {
			encoded[i] = vec
			continue
		}
		if !seen[text] {
			seen[text] = true
			missing = append(missing, text)
		}
	}

	if len(missing) > 0 {
		e.logger.Debug("encoding cache misses",
			zap.Int("total", len(texts)), zap.Int("misses", len(missing)))
		vectors, err := e.encoder.Encode(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("encode batch: %w", err)
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(missing))
		}
		for i, text := range missing {
			cache.Put(text, vectors[i])
		}
	}

	for i, text := range texts {
		if encoded[i] != nil {
			continue
		}
		vec, ok := cache.Get(text)
		if !ok {
			return nil, fmt.Errorf("no encoding produced for %q", text)
		}
		encoded[i] = vec
	}
	return encoded, nil
}

// Dump persists the in-memory cache to its backing file.
func (e *Embedder) Dump() error {
	return e.vectorCache().Dump()
}

// ClearCache removes the backing file and installs a fresh empty cache,
// leaving the Embedder usable for further encodes.
func (e *Embedder) ClearCache() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.cache.Clear(); err != nil {
		return err
	}
	cache, err := NewVectorCache(e.appPath, e.embedderType)
	if err != nil {
		return err
	}
	e.cache = cache
	return nil
}

// Close releases the underlying encoder. The cache is not dumped; callers
// that want persistence call Dump first.
func (e *Embedder) Close() error {
	return e.encoder.Close()
}
