// Package embedding provides the persistent text embedding cache and the
// Embedder that fills it lazily through pluggable encode strategies.
package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/Keshav04042001/mindmeld/internal/apppath"
)

// VectorCache is a durable mapping from raw text to its embedding vector.
// The whole mapping is held in memory; the backing file is written only on an
// explicit Dump and removed only by Clear. One cache instance exists per
// (application, embedder type) pair, at a path derived from that pair.
// All accessors are safe for concurrent use.
type VectorCache struct {
	path string

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewVectorCache creates the cache for (appPath, embedderType). Parent
// directories are created if missing. An existing non-empty backing file is
// loaded fully into memory; a file that cannot be decoded is a construction
// error, never silently replaced with an empty cache.
func NewVectorCache(appPath, embedderType string) (*VectorCache, error) {
	path := apppath.EmbedderCachePath(appPath, embedderType)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &VectorCache{path: path, vectors: make(map[string][]float32)}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat cache file: %w", err)
	}
	if info.Size() == 0 {
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load cache %s: %w", path, err)
	}
	return c, nil
}

// Get returns the cached vector for text if present. Read-only.
func (c *VectorCache) Get(text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[text]
	return v, ok
}

// Put stores the vector for text in memory. The backing file is untouched.
func (c *VectorCache) Put(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[text] = vector
}

// Len returns the number of cached entries.
func (c *VectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Path returns the backing file path.
func (c *VectorCache) Path() string {
	return c.path
}

// Dump writes the full in-memory mapping to the backing file. The write goes
// to a temporary file first and is renamed into place, so a crash mid-write
// cannot truncate an existing cache.
func (c *VectorCache) Dump() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	c.mu.RLock()
	err := c.write(tmp)
	c.mu.RUnlock()
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Clear removes the backing file if present. The in-memory mapping is left
// untouched; owners that want a fresh cache construct a new instance.
func (c *VectorCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// File format: entry count (uint32), then per entry key length (uint32),
// key bytes, vector length (uint32), and the vector as float32 bits.
// Everything little-endian.

const (
	maxKeyBytes   = 1 << 20
	maxVectorDims = 1 << 16
)

func (c *VectorCache) write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(c.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for key, vec := range c.vectors {
		keyBytes := []byte(key)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(keyBytes))); err != nil {
			return fmt.Errorf("write key len: %w", err)
		}
		if _, err := f.Write(keyBytes); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(vec))); err != nil {
			return fmt.Errorf("write vector len: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

func (c *VectorCache) load() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(f, binary.LittleEndian, &keyLen); err != nil {
			return fmt.Errorf("read key len: %w", err)
		}
		if keyLen > maxKeyBytes {
			return fmt.Errorf("implausible key length %d", keyLen)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(f, keyBytes); err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		var vecLen uint32
		if err := binary.Read(f, binary.LittleEndian, &vecLen); err != nil {
			return fmt.Errorf("read vector len: %w", err)
		}
		if vecLen > maxVectorDims {
			return fmt.Errorf("implausible vector length %d", vecLen)
		}
		buf := make([]byte, int(vecLen)*4)
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		c.vectors[string(keyBytes)] = bytesToFloat32Slice(buf)
	}
	// Trailing bytes mean the file was not written by this codec.
	var trailing [1]byte
	if _, err := f.Read(trailing[:]); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
