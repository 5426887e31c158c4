package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	fileMagic   = "KIDX"
	fileVersion = uint32(1)
)

// FlatIndex is an exact index: every search scans all stored vectors.
// The dimension is unset until Initialize or the first Add.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty, uninitialized index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// Initialize fixes the dimension of the index.
func (f *FlatIndex) Initialize(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", dimension)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initializeLocked(dimension)
}

func (f *FlatIndex) initializeLocked(dimension int) error {
	if f.dimensions == 0 {
		f.dimensions = dimension
		return nil
	}
	if f.dimensions != dimension {
		return fmt.Errorf("%w: index has %d, got %d", models.ErrDimensionMismatch, f.dimensions, dimension)
	}
	return nil
}

// Add appends vectors at the next positions. An uninitialized index takes its
// dimension from the first vector. All vectors are validated before any is stored.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := len(f.vectors)
	if len(vectors) == 0 {
		return first, nil
	}
	dim := f.dimensions
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return first, fmt.Errorf("dimensions must be positive, got 0")
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return first, fmt.Errorf("%w: vector %d has %d, expected %d", models.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	if err := f.initializeLocked(dim); err != nil {
		return first, err
	}
	for _, v := range vectors {
		vec := make([]float32, dim)
		copy(vec, v)
		f.vectors = append(f.vectors, vec)
	}
	return first, nil
}

// Search returns the k nearest positions by squared Euclidean distance.
// k is clamped to the number of stored vectors.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.dimensions == 0 {
		return nil, models.ErrIndexNotInitialized
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	type scored struct {
		pos  int
		dist float64
	}
	scores := make([]scored, len(f.vectors))
	for i, vec := range f.vectors {
		scores[i] = scored{pos: i, dist: SquaredL2(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]Neighbor, k)
	for i := 0; i < k; i++ {
		result[i] = Neighbor{Position: scores[i].pos, Distance: float32(scores[i].dist)}
	}
	return result, nil
}

// Vector returns a copy of the vector stored at position.
func (f *FlatIndex) Vector(position int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if position < 0 || position >= len(f.vectors) {
		return nil, fmt.Errorf("%w: position %d, size %d", models.ErrIndexOutOfRange, position, len(f.vectors))
	}
	out := make([]float32, len(f.vectors[position]))
	copy(out, f.vectors[position])
	return out, nil
}

// Save persists the index to path via a temp file and rename. Format: magic (4),
// version (4), dimension (4), n (4), then n*dimension little-endian float32.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := f.writeTo(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

func (f *FlatIndex) writeTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{fileVersion, uint32(f.dimensions), uint32(len(f.vectors))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, vec := range f.vectors {
		if _, err := bw.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the index stored at path.
// If the file does not exist, no error is returned and the index is unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	dim, vectors, err := readIndex(bufio.NewReader(file), info.Size())
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimensions = dim
	f.vectors = vectors
	return nil
}

// headerSize is the magic plus three uint32 header fields.
const headerSize = int64(len(fileMagic)) + 3*4

// readIndex decodes an index of size bytes. The header is checked against
// size before anything is allocated for the vectors.
func readIndex(r io.Reader, size int64) (int, [][]float32, error) {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return 0, nil, errors.New("not a vector index file")
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != fileVersion {
		return 0, nil, fmt.Errorf("unsupported index version %d", header[0])
	}
	dim, n := int(header[1]), int(header[2])
	if dim == 0 && n > 0 {
		return 0, nil, errors.New("index file has vectors but no dimension")
	}
	if !payloadMatches(size-headerSize, n, dim) {
		return 0, nil, fmt.Errorf("index file is %d bytes, header describes %d vectors of dimension %d", size, n, dim)
	}
	vectors := make([][]float32, 0, n)
	if n == 0 {
		return dim, vectors, nil
	}
	buf := make([]byte, dim*4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return dim, vectors, nil
}

// payloadMatches reports whether payload bytes hold exactly n vectors of dim
// float32 values, without overflowing on hostile header values.
func payloadMatches(payload int64, n, dim int) bool {
	if n == 0 {
		return payload == 0
	}
	rowBytes := int64(dim) * 4
	return payload%rowBytes == 0 && payload/rowBytes == int64(n)
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

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimension returns the fixed dimension, or 0 when uninitialized.
func (f *FlatIndex) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

var _ VectorIndex = (*FlatIndex)(nil)
