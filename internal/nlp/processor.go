// Package nlp coordinates embedders and per-slot role classifiers for one
// application.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/apppath"
	"github.com/Keshav04042001/mindmeld/internal/classifier"
	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/resource"
)

// ErrNotReady is returned by Predict when no trained classifier exists for
// the requested slot.
var ErrNotReady = errors.New("classifier is not ready; train it first")

// Processor owns the role classifiers of one application, keyed by their
// (domain, intent, entity type) slot. Classifiers are created on demand and
// persist their artifacts under the app's generated directory.
type Processor struct {
	appPath  string
	loader   *resource.Loader
	embedder *embedding.Embedder
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// slot pairs a classifier with the lock that serializes mutation of it.
// RoleClassifier itself is not safe for concurrent use, so Train and Predict
// hold the slot lock across every call into the classifier. Different slots
// proceed independently.
type slot struct {
	mu  sync.Mutex
	clf *classifier.RoleClassifier
}

// NewProcessor creates a processor. The embedder may be nil when only
// non-embedding model types are configured.
func NewProcessor(appPath string, loader *resource.Loader, embedder *embedding.Embedder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		appPath:  appPath,
		loader:   loader,
		embedder: embedder,
		logger:   logger,
		slots:    make(map[string]*slot),
	}
}

func slotKey(domain, intent, entityType string) string {
	return domain + "/" + intent + "/" + entityType
}

func (p *Processor) slotFor(domain, intent, entityType string) *slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := slotKey(domain, intent, entityType)
	s, ok := p.slots[key]
	if !ok {
		s = &slot{clf: classifier.NewRoleClassifier(p.loader, p.embedder, domain, intent, entityType, p.logger)}
		p.slots[key] = s
	}
	return s
}

// TrainResult summarizes one training request.
type TrainResult struct {
	Reused  bool     `json:"reused"`
	Trained bool     `json:"trained"`
	Roles   []string `json:"roles,omitempty"`
	Hash    string   `json:"hash"`
}

// TrainOptions control one training request.
type TrainOptions struct {
	LabelSet string
	// Force skips the previous-artifact reuse check.
	Force bool
}

// Train fits the classifier for a slot, reusing the persisted artifact when
// its fingerprint still matches, and writes the resulting artifact back.
func (p *Processor) Train(ctx context.Context, domain, intent, entityType string, opts TrainOptions) (TrainResult, error) {
	s := p.slotFor(domain, intent, entityType)
	s.mu.Lock()
	defer s.mu.Unlock()
	clf := s.clf
	path := apppath.RoleModelPath(p.appPath, domain, intent, entityType)

	fit := classifier.FitOptions{LabelSet: opts.LabelSet}
	if !opts.Force {
		fit.PreviousModelPath = path
	}
	if err := clf.Fit(ctx, fit); err != nil {
		return TrainResult{}, err
	}

	res := TrainResult{
		Reused:  !clf.Dirty(),
		Trained: clf.Trained(),
		Roles:   clf.Roles(),
		Hash:    clf.Hash(),
	}
	if clf.Dirty() {
		if err := clf.Dump(path); err != nil {
			return TrainResult{}, fmt.Errorf("persist classifier: %w", err)
		}
	}
	if p.embedder != nil {
		if err := p.embedder.Dump(); err != nil {
			p.logger.Warn("embedding cache dump failed", zap.Error(err))
		}
	}
	return res, nil
}

// Predict returns the role for the entity at entityIndex in query. A slot
// with no in-memory classifier falls back to its persisted artifact; if none
// is usable, ErrNotReady is returned.
func (p *Processor) Predict(ctx context.Context, domain, intent, entityType string, query models.ProcessedQuery, entityIndex int) (string, error) {
	s := p.slotFor(domain, intent, entityType)
	s.mu.Lock()
	defer s.mu.Unlock()
	clf := s.clf
	if !clf.Ready() {
		clf.Load(ctx, apppath.RoleModelPath(p.appPath, domain, intent, entityType))
	}
	if !clf.Ready() {
		return "", ErrNotReady
	}
	return clf.Predict(ctx, query, entityIndex)
}

// Encode returns embeddings for texts through the shared cache-backed
// embedder.
func (p *Processor) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	return p.embedder.GetEncodings(ctx, texts)
}

// ClearEncodingCache drops the persisted embedding cache.
func (p *Processor) ClearEncodingCache() error {
	if p.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	return p.embedder.ClearCache()
}

// Invalidate drops cached resources after the app's source data changed.
// Already-fit classifiers keep serving until retrained; their fingerprints
// make the next Train pick up the new data.
func (p *Processor) Invalidate() {
	p.loader.InvalidateGazetteers()
	p.logger.Info("resource caches invalidated")
}

// SlotStatus describes one classifier slot.
type SlotStatus struct {
	Domain     string   `json:"domain"`
	Intent     string   `json:"intent"`
	EntityType string   `json:"entity_type"`
	Ready      bool     `json:"ready"`
	Trained    bool     `json:"trained"`
	Roles      []string `json:"roles,omitempty"`
	Hash       string   `json:"hash,omitempty"`
}

// Status reports all known classifier slots and the embedding cache size.
func (p *Processor) Status() ([]SlotStatus, int) {
	p.mu.Lock()
	byKey := make(map[string]*slot, len(p.slots))
	keys := make([]string, 0, len(p.slots))
	for k, s := range p.slots {
		byKey[k] = s
		keys = append(keys, k)
	}
	p.mu.Unlock()
	sort.Strings(keys)

	slots := make([]SlotStatus, len(keys))
	for i, k := range keys {
		parts := strings.SplitN(k, "/", 3)
		s := byKey[k]
		s.mu.Lock()
		slots[i] = SlotStatus{
			Domain:     parts[0],
			Intent:     parts[1],
			EntityType: parts[2],
			Ready:      s.clf.Ready(),
			Trained:    s.clf.Trained(),
			Roles:      s.clf.Roles(),
			Hash:       s.clf.Hash(),
		}
		s.mu.Unlock()
	}
	cacheSize := 0
	if p.embedder != nil {
		cacheSize = p.embedder.CacheSize()
	}
	return slots, cacheSize
}

// EmbedderType returns the configured encoder type, or "" without one.
func (p *Processor) EmbedderType() string {
	if p.embedder == nil {
		return ""
	}
	return p.embedder.Type()
}

// Close flushes the embedding cache and releases encoder resources.
func (p *Processor) Close() error {
	if p.embedder == nil {
		return nil
	}
	if err := p.embedder.Dump(); err != nil {
		p.logger.Warn("embedding cache dump failed", zap.Error(err))
	}
	return p.embedder.Close()
}
