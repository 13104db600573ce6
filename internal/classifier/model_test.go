package classifier

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/models"
)

func TestFrequencyModelMajority(t *testing.T) {
	m := newFrequencyModel(DefaultModelConfig())
	examples := []Example{
		{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0},
		{Query: timeQuery("we open at 9 am", "9 am", ""), EntityIndex: 0},
		{Query: timeQuery("close at 9 am", "9 am", ""), EntityIndex: 0},
		{Query: timeQuery("close at 6 pm", "6 pm", ""), EntityIndex: 0},
	}
	labels := []string{"open_time", "open_time", "close_time", "close_time"}
	if err := m.Fit(context.Background(), examples, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	role, err := m.Predict(context.Background(), Example{Query: timeQuery("open at 9 AM", "9 AM", ""), EntityIndex: 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if role != "open_time" {
		t.Errorf("Predict(9 AM) = %q, want open_time (case-folded majority)", role)
	}

	// unseen text falls back to the global majority, ties break
	// lexicographically
	role, err = m.Predict(context.Background(), Example{Query: timeQuery("how about noon", "noon", ""), EntityIndex: 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if role != "close_time" {
		t.Errorf("Predict(noon) = %q, want close_time", role)
	}
}

func TestFrequencyModelPayloadRoundtrip(t *testing.T) {
	m := newFrequencyModel(DefaultModelConfig())
	examples := []Example{
		{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0},
		{Query: timeQuery("close at 6 pm", "6 pm", ""), EntityIndex: 0},
	}
	if err := m.Fit(context.Background(), examples, []string{"open_time", "close_time"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	payload, err := m.MarshalPayload()
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}

	restored := newFrequencyModel(DefaultModelConfig())
	if err := restored.UnmarshalPayload(payload); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	role, err := restored.Predict(context.Background(), Example{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if role != "open_time" {
		t.Errorf("Predict = %q, want open_time", role)
	}
}

func newMockEmbedder(t *testing.T) *embedding.Embedder {
	t.Helper()
	emb, err := embedding.NewEmbedder(t.TempDir(), "mock", embedding.DefaultRegistry(),
		embedding.Options{Dimensions: 16}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	t.Cleanup(func() { emb.Close() })
	return emb
}

func TestCentroidModelSeparatesRoles(t *testing.T) {
	emb := newMockEmbedder(t)
	m := newCentroidModel(ModelConfig{ModelType: ModelTypeCentroid}, emb)

	examples := []Example{
		{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0},
		{Query: timeQuery("close at 6 pm", "6 pm", ""), EntityIndex: 0},
	}
	if err := m.Fit(context.Background(), examples, []string{"open_time", "close_time"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Mock encodings are a deterministic function of the input text, so an
	// entity text seen at fit time lands exactly on its role centroid.
	role, err := m.Predict(context.Background(), Example{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if role != "open_time" {
		t.Errorf("Predict(9 am) = %q, want open_time", role)
	}

	role, err = m.Predict(context.Background(), Example{Query: timeQuery("close at 6 pm", "6 pm", ""), EntityIndex: 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if role != "close_time" {
		t.Errorf("Predict(6 pm) = %q, want close_time", role)
	}
}

func TestCentroidModelContextFeature(t *testing.T) {
	emb := newMockEmbedder(t)
	m := newCentroidModel(ModelConfig{ModelType: ModelTypeCentroid, Features: []string{"context"}}, emb)

	got := m.exampleText(Example{Query: timeQuery("open at 9 am", "9 am", ""), EntityIndex: 0})
	if got != "9 am open at 9 am" {
		t.Errorf("exampleText = %q", got)
	}
}

func TestCentroidModelInGazFeature(t *testing.T) {
	emb := newMockEmbedder(t)
	m := newCentroidModel(ModelConfig{ModelType: ModelTypeCentroid, Features: []string{"in-gaz"}}, emb)
	m.RegisterResources(map[string]*models.Gazetteer{
		"store_names": {
			Name:       "store_names",
			EntityType: "store_name",
			Entries:    map[string]float64{"downtown": 1.0},
		},
	})

	q := models.ProcessedQuery{
		Text:   "is the downtown store open",
		Domain: "store_info",
		Intent: "get_hours",
		Entities: []models.QueryEntity{
			{Text: "Downtown", Type: "store_name", Role: ""},
		},
	}
	got := m.exampleText(Example{Query: q, EntityIndex: 0})
	if got != "Downtown in-gaz:store_names" {
		t.Errorf("exampleText = %q", got)
	}
}

func TestNewModelUnknownType(t *testing.T) {
	if _, err := NewModel(ModelConfig{ModelType: "svm"}, nil); err == nil {
		t.Fatal("expected error for unknown model type")
	}
}

func TestNewModelCentroidRequiresEmbedder(t *testing.T) {
	if _, err := NewModel(ModelConfig{ModelType: ModelTypeCentroid}, nil); err == nil {
		t.Fatal("expected error when centroid model has no embedder")
	}
}
