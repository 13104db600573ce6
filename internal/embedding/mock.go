package embedding

import (
	"context"
	"math"

	"github.com/Keshav04042001/mindmeld/pkg/utils"
)

// MockEncoder is a deterministic encoder for tests and offline development.
// It derives a fixed-dimension vector from the text hash so that the same
// text always gets the same embedding.
type MockEncoder struct {
	dimensions int
}

// NewMockEncoder returns an encoder producing deterministic embeddings of the
// given dimensions (384 when non-positive).
func NewMockEncoder(dimensions int) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEncoder{dimensions: dimensions}
}

// Encode returns one deterministic unit vector per text.
func (e *MockEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		h := HashString(text)
		vec := make([]float32, e.dimensions)
		for j := 0; j < e.dimensions; j++ {
			vec[j] = float32(math.Sin(float64(h*(j+1)))*0.1 + 0.01)
		}
		utils.NormalizeL2(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEncoder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEncoder.
func (e *MockEncoder) Close() error {
	return nil
}
