package resource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/storage"
)

func newTestLoader(t *testing.T) (*Loader, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	l, err := NewLoader("/app", store, nil)
	if err != nil {
		t.Fatal(err)
	}
	return l, store
}

func TestLabeledQueriesDefaultLabelSet(t *testing.T) {
	l, store := newTestLoader(t)
	ctx := context.Background()

	queries := []models.ProcessedQuery{{Text: "hello", Domain: "greet", Intent: "hi"}}
	if err := store.ReplaceQueries(ctx, "greet", "hi", DefaultLabelSet, queries); err != nil {
		t.Fatal(err)
	}

	tree, err := l.LabeledQueries(ctx, "greet", "hi", "")
	if err != nil {
		t.Fatal(err)
	}
	flat := l.FlattenQueryTree(tree)
	if len(flat) != 1 || flat[0].Text != "hello" {
		t.Errorf("flatten = %+v", flat)
	}
}

func TestHashQueriesMatchesContent(t *testing.T) {
	l, _ := newTestLoader(t)
	a := l.HashQueries([]string{"one", "two"})
	b := l.HashQueries([]string{"one", "two"})
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == l.HashQueries([]string{"two", "one"}) {
		t.Error("HashQueries is order-sensitive by contract; callers sort first")
	}
}

func TestGazetteerCaching(t *testing.T) {
	l, store := newTestLoader(t)
	ctx := context.Background()

	gaz := &models.Gazetteer{Name: "cities", EntityType: "city", Entries: map[string]float64{"boston": 1}}
	if err := store.SaveGazetteer(ctx, gaz); err != nil {
		t.Fatal(err)
	}

	first, err := l.Gazetteer(ctx, "cities")
	if err != nil {
		t.Fatal(err)
	}

	// update storage behind the cache; cached value is served until invalidated
	gaz.Entries["denver"] = 0.5
	if err := store.SaveGazetteer(ctx, gaz); err != nil {
		t.Fatal(err)
	}
	cached, err := l.Gazetteer(ctx, "cities")
	if err != nil {
		t.Fatal(err)
	}
	if len(cached.Entries) != len(first.Entries) {
		t.Error("expected cached gazetteer before invalidation")
	}

	l.InvalidateGazetteers()
	fresh, err := l.Gazetteer(ctx, "cities")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Entries) != 2 {
		t.Errorf("expected reload after invalidation, entries = %v", fresh.Entries)
	}

	all, err := l.Gazetteers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Gazetteers returned %d entries", len(all))
	}
}
