// Package resource loads labeled queries and gazetteers for classifiers.
package resource

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/fingerprint"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/storage"
)

// DefaultLabelSet is the label set used when a training request names none.
const DefaultLabelSet = "train"

const gazetteerCacheSize = 64

// Loader fetches labeled queries and gazetteers from storage for one
// application. Gazetteers are cached in an LRU since every predict call
// re-registers them with the model.
type Loader struct {
	appPath  string
	store    storage.Storage
	gazCache *lru.Cache[string, *models.Gazetteer]
	logger   *zap.Logger
}

// NewLoader creates a loader over the given storage.
func NewLoader(appPath string, store storage.Storage, logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, *models.Gazetteer](gazetteerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gazetteer cache: %w", err)
	}
	return &Loader{appPath: appPath, store: store, gazCache: cache, logger: logger}, nil
}

// AppPath returns the application root this loader serves.
func (l *Loader) AppPath() string {
	return l.appPath
}

// LabeledQueries returns the query tree for (domain, intent, labelSet).
// An empty labelSet means DefaultLabelSet.
func (l *Loader) LabeledQueries(ctx context.Context, domain, intent, labelSet string) (models.QueryTree, error) {
	if labelSet == "" {
		labelSet = DefaultLabelSet
	}
	queries, err := l.store.LabeledQueries(ctx, domain, intent, labelSet)
	if err != nil {
		return nil, fmt.Errorf("load labeled queries %s/%s/%s: %w", domain, intent, labelSet, err)
	}
	tree := make(models.QueryTree)
	for _, q := range queries {
		tree.Add(q)
	}
	return tree, nil
}

// BuildQueryTree groups explicitly supplied queries into a tree, mirroring
// the shape LabeledQueries returns.
func (l *Loader) BuildQueryTree(queries []models.ProcessedQuery) models.QueryTree {
	tree := make(models.QueryTree)
	for _, q := range queries {
		tree.Add(q)
	}
	return tree
}

// FlattenQueryTree returns the tree's queries as a flat deterministic sequence.
func (l *Loader) FlattenQueryTree(tree models.QueryTree) []models.ProcessedQuery {
	return tree.Flatten()
}

// HashQueries returns the canonical digest of a flat sequence of raw query
// texts. The sequence is hashed in the given order; callers sort first when
// they need order independence.
func (l *Loader) HashQueries(texts []string) string {
	return fingerprint.HashStrings(texts)
}

// Gazetteers returns all gazetteers for the app, keyed by name. Individual
// gazetteers are served from the LRU when possible.
func (l *Loader) Gazetteers(ctx context.Context) (map[string]*models.Gazetteer, error) {
	names, err := l.store.ListGazetteers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gazetteers: %w", err)
	}
	gazetteers := make(map[string]*models.Gazetteer, len(names))
	for _, name := range names {
		gaz, err := l.Gazetteer(ctx, name)
		if err != nil {
			return nil, err
		}
		gazetteers[name] = gaz
	}
	return gazetteers, nil
}

// Gazetteer returns one gazetteer by name, from cache or storage.
func (l *Loader) Gazetteer(ctx context.Context, name string) (*models.Gazetteer, error) {
	if gaz, ok := l.gazCache.Get(name); ok {
		return gaz, nil
	}
	gaz, err := l.store.Gazetteer(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer %s: %w", name, err)
	}
	l.gazCache.Add(name, gaz)
	l.logger.Debug("gazetteer loaded", zap.String("name", name), zap.Int("entries", len(gaz.Entries)))
	return gaz, nil
}

// InvalidateGazetteers drops the gazetteer cache, forcing reloads from
// storage. Called after ingest updates gazetteer data.
func (l *Loader) InvalidateGazetteers() {
	l.gazCache.Purge()
}
