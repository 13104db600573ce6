// Package fingerprint computes stable digests over training configuration and
// training data, used to decide whether a prior trained model can be reused.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Compute returns a hex digest over the significant configuration and the
// content of the training queries. The query texts are sorted on a copy
// before hashing, so the digest is independent of grouping and iteration
// order. Equal digests across runs mean a fresh fit would produce an
// equivalent model.
//
// config must be JSON-serializable; callers pass only the materially
// significant fields (metadata like verbosity must already be stripped).
func Compute(config any, queries []string) (string, error) {
	configBytes, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("serialize config: %w", err)
	}

	sorted := make([]string, len(queries))
	copy(sorted, queries)
	sort.Strings(sorted)

	h := sha256.New()
	writeLengthPrefixed(h, configBytes)
	for _, q := range sorted {
		writeLengthPrefixed(h, []byte(q))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashStrings returns a hex digest over a flat text sequence in the given
// order. Callers that need order independence sort first.
func HashStrings(texts []string) string {
	h := sha256.New()
	for _, t := range texts {
		writeLengthPrefixed(h, []byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeLengthPrefixed writes len(b) then b, so that adjacent values cannot
// run together and produce colliding digests.
func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = h.Write(lenBuf[:])
	_, _ = h.Write(b)
}
