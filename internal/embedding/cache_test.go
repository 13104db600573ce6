package embedding

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/Keshav04042001/mindmeld/internal/apppath"
)

func TestVectorCacheStartsEmpty(t *testing.T) {
	app := t.TempDir()
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatalf("NewVectorCache: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("new cache has %d entries", c.Len())
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestVectorCacheRoundTrip(t *testing.T) {
	app := t.TempDir()
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatalf("NewVectorCache: %v", err)
	}
	c.Put("hello", []float32{1.5, -2.25, 0.001})
	c.Put("world", []float32{0, 4})
	if err := c.Dump(); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	reloaded, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded %d entries, want 2", reloaded.Len())
	}
	vec, ok := reloaded.Get("hello")
	if !ok {
		t.Fatal("expected hit after reload")
	}
	want := []float32{1.5, -2.25, 0.001}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestVectorCacheEmptyFileStartsEmpty(t *testing.T) {
	app := t.TempDir()
	path := apppath.EmbedderCachePath(app, "mock")
	if err := os.MkdirAll(app+"/.generated/embeddings", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatalf("empty file must not be an error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("got %d entries", c.Len())
	}
}

func TestVectorCacheCorruptFileFails(t *testing.T) {
	app := t.TempDir()
	path := apppath.EmbedderCachePath(app, "mock")
	if err := os.MkdirAll(app+"/.generated/embeddings", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not a cache file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVectorCache(app, "mock"); err == nil {
		t.Fatal("corrupt cache file must fail construction")
	}
}

func TestVectorCacheTruncatedFileFails(t *testing.T) {
	app := t.TempDir()
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatal(err)
	}
	c.Put("hello", []float32{1, 2, 3})
	if err := c.Dump(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(c.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.Path(), data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVectorCache(app, "mock"); err == nil {
		t.Fatal("truncated cache file must fail construction")
	}
}

func TestVectorCacheClear(t *testing.T) {
	app := t.TempDir()
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatal(err)
	}
	c.Put("a", []float32{1})
	if err := c.Dump(); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Error("backing file should be gone after Clear")
	}
	// clearing again is fine
	if err := c.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestVectorCachePathsAreTypeKeyed(t *testing.T) {
	app := t.TempDir()
	a, err := NewVectorCache(app, "bert")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewVectorCache(app, "glove")
	if err != nil {
		t.Fatal(err)
	}
	if a.Path() == b.Path() {
		t.Error("caches for different embedder types must not share a file")
	}
}

func TestVectorCacheConcurrentPutGet(t *testing.T) {
	app := t.TempDir()
	c, err := NewVectorCache(app, "mock")
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("worker %d text %d", w, i)
				c.Put(key, []float32{float32(w), float32(i)})
				if _, ok := c.Get(key); !ok {
					t.Errorf("missing key %q after Put", key)
				}
				c.Len()
			}
		}(w)
	}
	// Dump concurrently with the writers; it must see a consistent map.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			if err := c.Dump(); err != nil {
				t.Errorf("Dump: %v", err)
			}
		}
	}()
	wg.Wait()

	if got := c.Len(); got != workers*perWorker {
		t.Errorf("Len() = %d, want %d", got, workers*perWorker)
	}
}
