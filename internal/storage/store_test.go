package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

// storeFactories lets every DocumentStore implementation run the same contract tests.
func storeFactories(t *testing.T) map[string]func() DocumentStore {
	t.Helper()
	return map[string]func() DocumentStore{
		"json": func() DocumentStore { return NewJSONStore() },
		"sqlite": func() DocumentStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "documents.db"))
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func TestDocumentStore_AppendGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			ctx := context.Background()

			for i, src := range []string{"a.txt", "b.txt", "c.txt"} {
				pos, err := store.Append(ctx, models.NewFileDocument(src, "content of "+src))
				if err != nil {
					t.Fatal(err)
				}
				if pos != i {
					t.Errorf("Append position = %d, want %d", pos, i)
				}
			}
			n, err := store.Count(ctx)
			if err != nil || n != 3 {
				t.Fatalf("Count: %v, %d", err, n)
			}
			doc, err := store.Get(ctx, 1)
			if err != nil {
				t.Fatal(err)
			}
			if doc.Source() != "b.txt" || doc.Content != "content of b.txt" {
				t.Errorf("Get(1) = %+v", doc)
			}
			for _, pos := range []int{3, 42, -1} {
				if _, err := store.Get(ctx, pos); !errors.Is(err, models.ErrIndexOutOfRange) {
					t.Errorf("Get(%d): expected ErrIndexOutOfRange, got %v", pos, err)
				}
			}
		})
	}
}

func TestDocumentStore_ListAndTruncate(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			ctx := context.Background()
			for _, src := range []string{"a", "b", "c", "d"} {
				_, _ = store.Append(ctx, models.NewFileDocument(src, src))
			}

			page, err := store.List(ctx, 1, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(page) != 2 || page[0].Content != "b" || page[1].Content != "c" {
				t.Errorf("List(1,2) = %v", page)
			}
			all, _ := store.List(ctx, 0, 0)
			if len(all) != 4 {
				t.Errorf("List all = %d docs, want 4", len(all))
			}

			if err := store.Truncate(ctx, 2); err != nil {
				t.Fatal(err)
			}
			if n, _ := store.Count(ctx); n != 2 {
				t.Errorf("after Truncate count = %d, want 2", n)
			}
			pos, _ := store.Append(ctx, models.NewFileDocument("e", "e"))
			if pos != 2 {
				t.Errorf("position after Truncate = %d, want 2", pos)
			}
		})
	}
}

func TestJSONStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "documents")

	store := NewJSONStore()
	_, _ = store.Append(ctx, models.NewFileDocument("cat.txt", "meow\nü"))
	_, _ = store.Append(ctx, models.Document{Content: "bare", Metadata: map[string]string{"source": "x.txt", "lang": "en"}})
	if err := store.Save(ctx, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewJSONStore()
	if err := loaded.Load(ctx, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	n, _ := loaded.Count(ctx)
	if n != 2 {
		t.Fatalf("loaded %d documents, want 2", n)
	}
	doc, _ := loaded.Get(ctx, 0)
	if doc.Content != "meow\nü" || doc.Source() != "cat.txt" {
		t.Errorf("doc 0 = %+v", doc)
	}
	doc, _ = loaded.Get(ctx, 1)
	if doc.Metadata["lang"] != "en" {
		t.Errorf("doc 1 metadata = %v", doc.Metadata)
	}
}

func TestJSONStore_SaveLoadEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "documents")
	if err := NewJSONStore().Save(ctx, path); err != nil {
		t.Fatal(err)
	}
	loaded := NewJSONStore()
	if err := loaded.Load(ctx, path); err != nil {
		t.Fatal(err)
	}
	if n, _ := loaded.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestJSONStore_LoadMissingFile(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore()
	_, _ = store.Append(ctx, models.NewFileDocument("a", "a"))
	if err := store.Load(ctx, filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("Load missing file should not error: %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("missing file should yield empty store, got %d", n)
	}
}

func TestJSONStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore()
	_, _ = store.Append(ctx, models.NewFileDocument("a.txt", "a"))
	doc, _ := store.Get(ctx, 0)
	doc.Metadata["source"] = "mutated"
	again, _ := store.Get(ctx, 0)
	if again.Source() != "a.txt" {
		t.Error("Get should not expose internal metadata map")
	}
}
