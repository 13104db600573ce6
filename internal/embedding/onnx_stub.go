//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXUnavailable = errors.New("ONNX encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEncoder stub type when built without CGO (see onnx.go for the real implementation).
type ONNXEncoder struct{}

// NewONNXEncoder returns an error when built without CGO (ONNX not available).
func NewONNXEncoder(_ Options) (*ONNXEncoder, error) {
	return nil, errONNXUnavailable
}

// Encode always fails on non-CGO builds.
func (e *ONNXEncoder) Encode(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

// Dimensions returns 0 on non-CGO builds.
func (e *ONNXEncoder) Dimensions() int { return 0 }

// Close is a no-op on non-CGO builds.
func (e *ONNXEncoder) Close() error { return nil }
