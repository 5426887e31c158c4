package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx := NewFlatIndex()
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	first, err := idx.Add(ctx, vecs)
	if err != nil {
		t.Fatal(err)
	}
	if first != 0 {
		t.Errorf("first position = %d, want 0", first)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}
	if idx.Dimension() != 3 {
		t.Errorf("Dimension=%d, want 3", idx.Dimension())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Position != 0 || results[1].Position != 1 {
		t.Errorf("positions = %d,%d, want 0,1", results[0].Position, results[1].Position)
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance = %f, want 0", results[0].Distance)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results not ordered by ascending distance")
	}

	next, err := idx.Add(ctx, [][]float32{{0, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if next != 3 {
		t.Errorf("next position = %d, want 3", next)
	}
}

func TestFlatIndex_SearchTiesByPosition(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	// Positions 1, 2 and 3 are all at distance 1 from the origin.
	_, err := idx.Add(ctx, [][]float32{{5, 5}, {0, 1}, {1, 0}, {0, -1}})
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3}
	for i, r := range results {
		if r.Position != want[i] {
			t.Errorf("result %d position = %d, want %d", i, r.Position, want[i])
		}
	}
}

func TestFlatIndex_SearchClampsK(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	_, _ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected k clamped to 2, got %d", len(results))
	}
	seen := map[int]bool{}
	for _, r := range results {
		if r.Position < 0 || r.Position >= 2 || seen[r.Position] {
			t.Errorf("invalid or duplicate position %d", r.Position)
		}
		seen[r.Position] = true
	}

	results, err = idx.Search(ctx, []float32{1, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("k=0 should return nothing, got %d", len(results))
	}
}

func TestFlatIndex_SearchUninitialized(t *testing.T) {
	idx := NewFlatIndex()
	_, err := idx.Search(context.Background(), []float32{1}, 1)
	if !errors.Is(err, models.ErrIndexNotInitialized) {
		t.Errorf("expected ErrIndexNotInitialized, got %v", err)
	}
}

func TestFlatIndex_Initialize(t *testing.T) {
	idx := NewFlatIndex()
	if err := idx.Initialize(3); err != nil {
		t.Fatal(err)
	}
	if err := idx.Initialize(3); err != nil {
		t.Errorf("same dimension should be a no-op: %v", err)
	}
	if err := idx.Initialize(4); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := NewFlatIndex().Initialize(0); err == nil {
		t.Error("expected error for zero dimension")
	}

	// Initialized but empty: search succeeds with no results.
	results, err := idx.Search(context.Background(), []float32{1, 2, 3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestFlatIndex_DimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	idx := NewFlatIndex()
	ctx := context.Background()
	if _, err := idx.Add(ctx, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}

	_, err := idx.Add(ctx, [][]float32{{1, 2, 3}, {1, 2, 3, 4}})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("partial add: size=%d, want 1", idx.Size())
	}

	_, err = idx.Search(ctx, []float32{1, 2}, 1)
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("query mismatch: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndex_AddEmpty(t *testing.T) {
	idx := NewFlatIndex()
	if _, err := idx.Add(context.Background(), nil); err != nil {
		t.Errorf("Add empty should succeed: %v", err)
	}
	if idx.Size() != 0 || idx.Dimension() != 0 {
		t.Errorf("Add empty changed state: size=%d dim=%d", idx.Size(), idx.Dimension())
	}
}

func TestFlatIndex_Vector(t *testing.T) {
	idx := NewFlatIndex()
	_, _ = idx.Add(context.Background(), [][]float32{{1, 2}})
	v, err := idx.Vector(0)
	if err != nil {
		t.Fatal(err)
	}
	v[0] = 99
	again, _ := idx.Vector(0)
	if again[0] != 1 {
		t.Error("Vector should return a copy")
	}
	if _, err := idx.Vector(1); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "index")

	idx := NewFlatIndex()
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1.5}}
	if _, err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded := NewFlatIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 3 || loaded.Dimension() != 3 {
		t.Fatalf("after Load size=%d dim=%d", loaded.Size(), loaded.Dimension())
	}
	for i, want := range vecs {
		got, _ := loaded.Vector(i)
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("vector %d = %v, want %v", i, got, want)
				break
			}
		}
	}
	results, err := loaded.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Position != 2 {
		t.Errorf("Search after Load: got %v", results)
	}
}

func TestFlatIndex_SaveLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	if err := NewFlatIndex().Save(path); err != nil {
		t.Fatal(err)
	}
	loaded := NewFlatIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 0 || loaded.Dimension() != 0 {
		t.Errorf("empty round trip: size=%d dim=%d", loaded.Size(), loaded.Dimension())
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx := NewFlatIndex()
	if err := idx.Load(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("Load missing file should not error: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("size=%d, want 0", idx.Size())
	}
}

func TestFlatIndex_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad")
	if err := os.WriteFile(bad, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewFlatIndex().Load(bad); err == nil {
		t.Error("expected error for bad magic")
	}

	path := filepath.Join(dir, "truncated")
	idx := NewFlatIndex()
	_, _ = idx.Add(context.Background(), [][]float32{{1, 2}, {3, 4}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewFlatIndex().Load(path); err == nil {
		t.Error("expected error for truncated file")
	}
}

func TestFlatIndex_LoadRejectsOversizedHeader(t *testing.T) {
	tests := []struct {
		name   string
		dim, n uint32
	}{
		{"huge count", 4, 1 << 31},
		{"huge dimension", 1 << 31, 1},
		{"both huge", 1<<32 - 1, 1<<32 - 1},
		{"count without payload", 2, 1},
		{"empty with trailing bytes", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.WriteString(fileMagic)
			_ = binary.Write(&buf, binary.LittleEndian, []uint32{fileVersion, tt.dim, tt.n})
			if tt.n == 0 {
				buf.Write([]byte{0, 0, 0, 0})
			}
			path := filepath.Join(t.TempDir(), "index")
			if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
				t.Fatal(err)
			}
			if err := NewFlatIndex().Load(path); err == nil {
				t.Error("expected error for header that does not match file size")
			}
		})
	}
}

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("SquaredL2 = %f, want 25", got)
	}
}
