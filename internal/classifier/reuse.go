package classifier

import (
	"fmt"
	"os"
	"path/filepath"
)

// FingerprintSuffix is appended to an artifact path to locate its
// fingerprint sidecar file.
const FingerprintSuffix = ".hash"

// ReuseState is the reuse gate's decision for a training request.
type ReuseState int

const (
	// NoPrior means no previous artifact or fingerprint record exists;
	// training proceeds.
	NoPrior ReuseState = iota
	// PriorMatch means the previous artifact was trained on equivalent
	// configuration and data; it is loaded instead of fitting.
	PriorMatch
	// PriorMismatch means a previous artifact exists but was trained on
	// different configuration or data; training proceeds and the new
	// fingerprint replaces the old pairing.
	PriorMismatch
)

func (s ReuseState) String() string {
	switch s {
	case NoPrior:
		return "no-prior"
	case PriorMatch:
		return "prior-match"
	case PriorMismatch:
		return "prior-mismatch"
	default:
		return fmt.Sprintf("reuse-state(%d)", int(s))
	}
}

// EvaluateReuse compares the fingerprint stored beside a previous artifact
// with the freshly computed one. An empty previousPath or an unreadable
// sidecar yields NoPrior.
func EvaluateReuse(previousPath, newHash string) ReuseState {
	if previousPath == "" {
		return NoPrior
	}
	stored, err := LoadFingerprint(previousPath)
	if err != nil {
		return NoPrior
	}
	if stored == newHash {
		return PriorMatch
	}
	return PriorMismatch
}

// LoadFingerprint reads the digest stored beside the artifact at path.
func LoadFingerprint(path string) (string, error) {
	data, err := os.ReadFile(path + FingerprintSuffix)
	if err != nil {
		return "", fmt.Errorf("read fingerprint: %w", err)
	}
	return string(data), nil
}

// SaveFingerprint writes exactly the digest string beside the artifact at
// path, replacing any previous pairing.
func SaveFingerprint(path, hash string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path+FingerprintSuffix, []byte(hash), 0644); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}
	return nil
}
