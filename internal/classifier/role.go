package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/fingerprint"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/resource"
)

// RoleClassifier determines the target role for entities of one type within
// one (domain, intent). It is trained on all labeled queries for the intent;
// the labels are the role names attached to each entity annotation.
type RoleClassifier struct {
	loader     *resource.Loader
	embedder   *embedding.Embedder
	domain     string
	intent     string
	entityType string
	logger     *zap.Logger

	model  Model
	config ModelConfig
	roles  []string
	hash   string
	ready  bool
	dirty  bool
}

// NewRoleClassifier creates an untrained classifier for (domain, intent,
// entityType). The embedder may be nil when only non-embedding model types
// are configured.
func NewRoleClassifier(loader *resource.Loader, embedder *embedding.Embedder, domain, intent, entityType string, logger *zap.Logger) *RoleClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleClassifier{
		loader:     loader,
		embedder:   embedder,
		domain:     domain,
		intent:     intent,
		entityType: entityType,
		logger:     logger,
	}
}

// FitOptions control one training run.
type FitOptions struct {
	// Queries supplies explicit training data; when empty, the LabelSet is
	// loaded through the resource loader.
	Queries  []models.ProcessedQuery
	LabelSet string
	// PreviousModelPath points at a prior artifact. When the prior was
	// trained on equivalent configuration and data, it is loaded instead of
	// fitting.
	PreviousModelPath string
	// Config overrides the resolved model configuration when set.
	Config *ModelConfig
}

// Fit trains the role classifier, or reuses the previous artifact when its
// stored fingerprint matches the requested configuration and data.
func (c *RoleClassifier) Fit(ctx context.Context, opts FitOptions) error {
	c.logger.Info("fitting role classifier",
		zap.String("domain", c.domain),
		zap.String("intent", c.intent),
		zap.String("entity_type", c.entityType))

	cfg, err := c.resolveConfig(opts)
	if err != nil {
		return err
	}

	newHash, err := c.trainingFingerprint(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("compute training fingerprint: %w", err)
	}

	if state := EvaluateReuse(opts.PreviousModelPath, newHash); state == PriorMatch {
		c.logger.Info("no need to fit, loading previous model",
			zap.String("path", opts.PreviousModelPath))
		c.Load(ctx, opts.PreviousModelPath)
		if !c.ready {
			return fmt.Errorf("previous model at %s matched but could not be loaded", opts.PreviousModelPath)
		}
		return nil
	}

	examples, labels, err := c.examplesAndLabels(ctx, opts)
	if err != nil {
		return err
	}

	if len(examples) > 0 {
		model, err := NewModel(cfg, c.embedder)
		if err != nil {
			return err
		}
		gazetteers, err := c.loader.Gazetteers(ctx)
		if err != nil {
			return fmt.Errorf("load gazetteers: %w", err)
		}
		model.RegisterResources(gazetteers)
		if err := model.Fit(ctx, examples, labels); err != nil {
			return fmt.Errorf("fit %s model: %w", cfg.ModelType, err)
		}
		c.model = model
		c.roles = uniqueSorted(labels)
	} else {
		// Every eligible entity carries the same role (or none exist):
		// there is nothing to distinguish, so the fit is skipped and the
		// classifier is ready but untrained.
		c.logger.Info("single role observed, skipping fit",
			zap.String("entity_type", c.entityType))
		c.model = nil
		c.roles = nil
	}
	c.config = cfg
	c.hash = newHash
	c.ready = true
	c.dirty = true
	return nil
}

// Dump persists the trained classifier and its fingerprint to path. The
// artifact and its sidecar are always written as a pair.
func (c *RoleClassifier) Dump(path string) error {
	c.logger.Info("saving role classifier",
		zap.String("domain", c.domain),
		zap.String("intent", c.intent),
		zap.String("entity_type", c.entityType),
		zap.String("path", path))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	env := artifactEnvelope{Config: c.config, Roles: c.roles}
	if c.model != nil {
		payload, err := c.model.MarshalPayload()
		if err != nil {
			return fmt.Errorf("marshal model payload: %w", err)
		}
		env.Family = c.model.Family()
		env.Version = c.model.Version()
		env.Payload = payload
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := SaveFingerprint(path, c.hash); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Load restores a previously dumped classifier from path. A missing or
// unreadable artifact is reported and leaves the classifier unready; it is
// not an error, so callers decide whether to retrain by checking Ready.
func (c *RoleClassifier) Load(ctx context.Context, path string) {
	c.logger.Info("loading role classifier",
		zap.String("domain", c.domain),
		zap.String("intent", c.intent),
		zap.String("entity_type", c.entityType),
		zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error("unable to load role classifier; artifact cannot be read",
			zap.String("path", path), zap.Error(err))
		return
	}
	var env artifactEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Error("unable to load role classifier; artifact cannot be decoded",
			zap.String("path", path), zap.Error(err))
		return
	}

	if env.Family != "" {
		model, err := NewModel(env.Config, c.embedder)
		if err != nil {
			c.logger.Error("unable to load role classifier", zap.Error(err))
			return
		}
		if model.Family() != env.Family {
			c.logger.Error("artifact family does not match its configuration",
				zap.String("family", env.Family),
				zap.String("model_type", env.Config.ModelType))
			return
		}
		if model.Version() != env.Version {
			c.logger.Error("unsupported artifact version",
				zap.String("family", env.Family),
				zap.Int("version", env.Version),
				zap.Int("supported", model.Version()))
			return
		}
		if err := model.UnmarshalPayload(env.Payload); err != nil {
			c.logger.Error("unable to load role classifier", zap.Error(err))
			return
		}
		if gazetteers, err := c.loader.Gazetteers(ctx); err == nil {
			model.RegisterResources(gazetteers)
		} else {
			c.logger.Warn("gazetteers unavailable at load", zap.Error(err))
		}
		c.model = model
		if hash, err := LoadFingerprint(path); err == nil {
			c.hash = hash
		} else {
			c.logger.Warn("fingerprint sidecar unreadable", zap.Error(err))
			c.hash = ""
		}
	} else {
		c.model = nil
		c.hash, _ = LoadFingerprint(path)
	}
	c.config = env.Config
	c.roles = env.Roles
	c.ready = true
	c.dirty = false
}

// Predict returns the role for the entity at entityIndex in query. Before
// any successful fit or load it reports the problem and returns
// ErrUntrained. A ready-but-untrained classifier (single observed role)
// returns an empty role with no error.
func (c *RoleClassifier) Predict(ctx context.Context, query models.ProcessedQuery, entityIndex int) (string, error) {
	if !c.ready {
		c.logger.Error("predict before fit or load",
			zap.String("domain", c.domain),
			zap.String("intent", c.intent),
			zap.String("entity_type", c.entityType))
		return "", ErrUntrained
	}
	if entityIndex < 0 || entityIndex >= len(query.Entities) {
		return "", fmt.Errorf("entity index %d out of range for query with %d entities",
			entityIndex, len(query.Entities))
	}
	if c.model == nil {
		return "", nil
	}

	if gazetteers, err := c.loader.Gazetteers(ctx); err == nil {
		c.model.RegisterResources(gazetteers)
	} else {
		c.logger.Warn("gazetteers unavailable at predict", zap.Error(err))
	}
	return c.model.Predict(ctx, Example{Query: query, EntityIndex: entityIndex})
}

// Ready reports whether the classifier has been fit or loaded.
func (c *RoleClassifier) Ready() bool { return c.ready }

// Dirty reports whether in-memory state is ahead of the persisted artifact.
func (c *RoleClassifier) Dirty() bool { return c.dirty }

// Trained reports whether an actual model was fit (false for the
// single-role short-circuit).
func (c *RoleClassifier) Trained() bool { return c.model != nil }

// Roles returns the role labels observed during the last fit, sorted.
func (c *RoleClassifier) Roles() []string {
	return append([]string(nil), c.roles...)
}

// Hash returns the training fingerprint of the current state.
func (c *RoleClassifier) Hash() string { return c.hash }

// Config returns the active model configuration.
func (c *RoleClassifier) Config() ModelConfig { return c.config }

func (c *RoleClassifier) resolveConfig(opts FitOptions) (ModelConfig, error) {
	if opts.Config != nil {
		return *opts.Config, nil
	}
	cfg, err := ResolveConfig(KindRole, c.loader.AppPath(), c.domain, c.intent, c.entityType)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("resolve classifier config: %w", err)
	}
	return cfg, nil
}

// queryTree returns the training query tree for opts, either the explicit
// queries or the configured label set.
func (c *RoleClassifier) queryTree(ctx context.Context, opts FitOptions) (models.QueryTree, error) {
	if len(opts.Queries) > 0 {
		return c.loader.BuildQueryTree(opts.Queries), nil
	}
	return c.loader.LabeledQueries(ctx, c.domain, c.intent, opts.LabelSet)
}

// trainingFingerprint digests the significant configuration and the
// canonical content of the training queries. Grouping and ordering of the
// queries does not contribute.
func (c *RoleClassifier) trainingFingerprint(ctx context.Context, cfg ModelConfig, opts FitOptions) (string, error) {
	tree, err := c.queryTree(ctx, opts)
	if err != nil {
		return "", err
	}
	flat := c.loader.FlattenQueryTree(tree)
	texts := make([]string, len(flat))
	for i, q := range flat {
		texts[i] = q.Canonical()
	}
	return fingerprint.Compute(cfg.Significant(), texts)
}

// examplesAndLabels builds the training examples: every entity of the
// classifier's type across the flattened query tree. A single distinct role
// (or no eligible entities) yields an empty result, which skips the fit.
// An unset role among the eligible entities, when more than one distinct
// role exists, is a data-integrity error with the offending queries
// enumerated.
func (c *RoleClassifier) examplesAndLabels(ctx context.Context, opts FitOptions) ([]Example, []string, error) {
	tree, err := c.queryTree(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	flat := c.loader.FlattenQueryTree(tree)

	var examples []Example
	var labels []string
	for _, q := range flat {
		for idx, ent := range q.Entities {
			if ent.Type != c.entityType {
				continue
			}
			examples = append(examples, Example{Query: q, EntityIndex: idx})
			labels = append(labels, ent.Role)
		}
	}

	unique := make(map[string]struct{})
	for _, l := range labels {
		unique[l] = struct{}{}
	}
	if len(unique) <= 1 {
		return nil, nil, nil
	}
	if _, hasUnset := unique[""]; hasUnset {
		var bad []string
		for i, l := range labels {
			if l != "" {
				continue
			}
			c.logger.Error("invalid entity annotation, expecting role",
				zap.String("query", examples[i].Query.Text),
				zap.String("entity_type", c.entityType))
			bad = append(bad, examples[i].Query.Text)
		}
		return nil, nil, &AnnotationError{Queries: bad}
	}
	return examples, labels, nil
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// artifactEnvelope is the on-disk form of a dumped classifier. Family and
// Payload are empty for a ready-but-untrained classifier.
type artifactEnvelope struct {
	Family  string          `json:"family,omitempty"`
	Version int             `json:"version,omitempty"`
	Config  ModelConfig     `json:"config"`
	Roles   []string        `json:"roles,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
