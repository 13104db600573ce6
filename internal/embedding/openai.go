package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Keshav04042001/mindmeld/pkg/utils"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIEncoder produces embeddings through the OpenAI embeddings API.
// The API key is read from OPENAI_API_KEY.
type OpenAIEncoder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEncoder creates an OpenAI-backed encoder. Options.Model selects
// the embedding model (text-embedding-3-small by default).
func NewOpenAIEncoder(opts Options) (*OpenAIEncoder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	dimensions := opts.Dimensions
	if dimensions == 0 {
		dimensions = 1536
		if model == "text-embedding-3-large" {
			dimensions = 3072
		}
	}

	return &OpenAIEncoder{
		client:     openai.NewClient(key),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Encode requests embeddings for all texts in one API call and returns unit
// vectors in input order.
func (e *OpenAIEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		utils.NormalizeL2(vec)
		vectors[item.Index] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension for the configured model.
func (e *OpenAIEncoder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (e *OpenAIEncoder) Close() error {
	return nil
}
