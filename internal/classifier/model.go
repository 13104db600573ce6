package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/pkg/utils"
)

// Supported model families.
const (
	ModelTypeFrequency = "frequency"
	ModelTypeCentroid  = "centroid"
)

// Example is one training or prediction instance: a labeled query and the
// index of the entity whose role is being classified.
type Example struct {
	Query       models.ProcessedQuery
	EntityIndex int
}

// Entity returns the entity this example classifies.
func (e Example) Entity() models.QueryEntity {
	return e.Query.Entities[e.EntityIndex]
}

// Model is a trainable role estimator. Artifacts persist the family tag, a
// payload version, and the payload itself, so loading checks compatibility
// explicitly instead of trusting an opaque blob.
type Model interface {
	Fit(ctx context.Context, examples []Example, labels []string) error
	Predict(ctx context.Context, example Example) (string, error)
	RegisterResources(gazetteers map[string]*models.Gazetteer)
	Family() string
	Version() int
	MarshalPayload() ([]byte, error)
	UnmarshalPayload(data []byte) error
}

// NewModel constructs the model for cfg. The embedder may be nil for model
// types that do not use embeddings.
func NewModel(cfg ModelConfig, embedder *embedding.Embedder) (Model, error) {
	switch cfg.ModelType {
	case ModelTypeFrequency, "":
		return newFrequencyModel(cfg), nil
	case ModelTypeCentroid:
		if embedder == nil {
			return nil, fmt.Errorf("centroid model requires an embedder")
		}
		return newCentroidModel(cfg, embedder), nil
	default:
		return nil, fmt.Errorf("unknown model type: %s (supported: %s, %s)",
			cfg.ModelType, ModelTypeFrequency, ModelTypeCentroid)
	}
}

// ---- frequency model ----

const frequencyVersion = 1

// frequencyModel predicts the majority role observed for an entity text,
// falling back to the global majority role for unseen texts. Gazetteers are
// accepted but unused; the text counts carry all of its signal.
type frequencyModel struct {
	config  ModelConfig
	payload frequencyPayload
}

type frequencyPayload struct {
	ByText   map[string]string `json:"by_text"`
	Majority string            `json:"majority"`
}

func newFrequencyModel(cfg ModelConfig) *frequencyModel {
	return &frequencyModel{config: cfg}
}

func (m *frequencyModel) Fit(_ context.Context, examples []Example, labels []string) error {
	if len(examples) != len(labels) {
		return fmt.Errorf("examples and labels length mismatch: %d vs %d", len(examples), len(labels))
	}
	byText := make(map[string]map[string]int)
	global := make(map[string]int)
	for i, ex := range examples {
		text := strings.ToLower(ex.Entity().Text)
		if byText[text] == nil {
			byText[text] = make(map[string]int)
		}
		byText[text][labels[i]]++
		global[labels[i]]++
	}

	m.payload = frequencyPayload{ByText: make(map[string]string, len(byText))}
	for text, counts := range byText {
		m.payload.ByText[text] = majorityLabel(counts)
	}
	m.payload.Majority = majorityLabel(global)
	return nil
}

func (m *frequencyModel) Predict(_ context.Context, example Example) (string, error) {
	if m.payload.Majority == "" {
		return "", fmt.Errorf("frequency model is not fit")
	}
	text := strings.ToLower(example.Entity().Text)
	if role, ok := m.payload.ByText[text]; ok {
		return role, nil
	}
	return m.payload.Majority, nil
}

func (m *frequencyModel) RegisterResources(map[string]*models.Gazetteer) {}

func (m *frequencyModel) Family() string { return ModelTypeFrequency }
func (m *frequencyModel) Version() int   { return frequencyVersion }

func (m *frequencyModel) MarshalPayload() ([]byte, error) {
	return json.Marshal(m.payload)
}

func (m *frequencyModel) UnmarshalPayload(data []byte) error {
	if err := json.Unmarshal(data, &m.payload); err != nil {
		return fmt.Errorf("decode frequency payload: %w", err)
	}
	return nil
}

// majorityLabel returns the most frequent label; ties break lexicographically
// so fitting is deterministic.
func majorityLabel(counts map[string]int) string {
	best := ""
	bestCount := -1
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		if counts[l] > bestCount {
			best = l
			bestCount = counts[l]
		}
	}
	return best
}

// ---- centroid model ----

const centroidVersion = 1

// centroidModel embeds each example and keeps a unit centroid per role;
// prediction picks the role whose centroid has the highest inner product with
// the example embedding. The "context" feature appends the query text to the
// embedded input, and "in-gaz" appends membership tokens for gazetteers of
// the entity's type.
type centroidModel struct {
	config     ModelConfig
	embedder   *embedding.Embedder
	gazetteers map[string]*models.Gazetteer
	payload    centroidPayload
}

type centroidPayload struct {
	Centroids map[string][]float32 `json:"centroids"`
}

func newCentroidModel(cfg ModelConfig, embedder *embedding.Embedder) *centroidModel {
	return &centroidModel{config: cfg, embedder: embedder}
}

func (m *centroidModel) Fit(ctx context.Context, examples []Example, labels []string) error {
	if len(examples) != len(labels) {
		return fmt.Errorf("examples and labels length mismatch: %d vs %d", len(examples), len(labels))
	}
	if len(examples) == 0 {
		return fmt.Errorf("centroid model requires at least one example")
	}

	inputs := make([]string, len(examples))
	for i, ex := range examples {
		inputs[i] = m.exampleText(ex)
	}
	vectors, err := m.embedder.GetEncodings(ctx, inputs)
	if err != nil {
		return fmt.Errorf("encode training examples: %w", err)
	}

	grouped := make(map[string][][]float32)
	for i, label := range labels {
		grouped[label] = append(grouped[label], vectors[i])
	}
	m.payload.Centroids = make(map[string][]float32, len(grouped))
	for label, vecs := range grouped {
		centroid := utils.MeanVector(vecs)
		utils.NormalizeL2(centroid)
		m.payload.Centroids[label] = centroid
	}
	return nil
}

func (m *centroidModel) Predict(ctx context.Context, example Example) (string, error) {
	if len(m.payload.Centroids) == 0 {
		return "", fmt.Errorf("centroid model is not fit")
	}
	vectors, err := m.embedder.GetEncodings(ctx, []string{m.exampleText(example)})
	if err != nil {
		return "", fmt.Errorf("encode example: %w", err)
	}

	roles := make([]string, 0, len(m.payload.Centroids))
	for role := range m.payload.Centroids {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	best := ""
	bestScore := 0.0
	for _, role := range roles {
		score := utils.DotProduct(vectors[0], m.payload.Centroids[role])
		if best == "" || score > bestScore {
			best = role
			bestScore = score
		}
	}
	return best, nil
}

// exampleText builds the text that gets embedded for an example.
func (m *centroidModel) exampleText(ex Example) string {
	ent := ex.Entity()
	parts := []string{ent.Text}
	if m.config.HasFeature("context") {
		parts = append(parts, ex.Query.Text)
	}
	if m.config.HasFeature("in-gaz") && len(m.gazetteers) > 0 {
		names := make([]string, 0, len(m.gazetteers))
		for name := range m.gazetteers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			gaz := m.gazetteers[name]
			if gaz.EntityType != ent.Type {
				continue
			}
			if _, ok := gaz.Entries[strings.ToLower(ent.Text)]; ok {
				parts = append(parts, "in-gaz:"+name)
			}
		}
	}
	return strings.Join(parts, " ")
}

func (m *centroidModel) RegisterResources(gazetteers map[string]*models.Gazetteer) {
	m.gazetteers = gazetteers
}

func (m *centroidModel) Family() string { return ModelTypeCentroid }
func (m *centroidModel) Version() int   { return centroidVersion }

func (m *centroidModel) MarshalPayload() ([]byte, error) {
	return json.Marshal(m.payload)
}

func (m *centroidModel) UnmarshalPayload(data []byte) error {
	if err := json.Unmarshal(data, &m.payload); err != nil {
		return fmt.Errorf("decode centroid payload: %w", err)
	}
	return nil
}
