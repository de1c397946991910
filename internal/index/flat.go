// Package index implements a flat, append-only inner-product similarity
// index. With L2-normalized vectors the inner product equals cosine
// similarity. Search is exact: every stored vector is scanned.
package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// File header for persisted indices.
const (
	fileMagic   = uint32(0x4d445846) // "MDXF"
	fileVersion = uint32(1)
)

// Flat is a flat inner-product index. Vectors are stored contiguously;
// a vector's slot is its insertion position and never changes until the
// index is rebuilt from scratch.
type Flat struct {
	dim  int
	data []float32 // len = dim * count
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vectors in order. Every vector must have the index dimension;
// the caller is responsible for normalization.
func (f *Flat) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Truncate drops every vector at slot n and beyond. Used to roll back an
// append whose metadata write failed.
func (f *Flat) Truncate(n int) {
	if n < 0 || n >= f.Len() {
		return
	}
	f.data = f.data[:n*f.dim]
}

// Search returns the slots and scores of the k nearest vectors by inner
// product, highest first. When fewer than k vectors exist, the remaining
// positions hold slot -1 with score 0.
func (f *Flat) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("query has dimension %d, want %d", len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("k must be positive, got %d", k)
	}

	n := f.Len()
	scores := make([]float32, n)
	for i := 0; i < n; i++ {
		var dot float32
		row := f.data[i*f.dim : (i+1)*f.dim]
		for j, q := range query {
			dot += row[j] * q
		}
		scores[i] = dot
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	outSlots := make([]int, k)
	outScores := make([]float32, k)
	for i := 0; i < k; i++ {
		if i < n {
			outSlots[i] = order[i]
			outScores[i] = scores[order[i]]
		} else {
			outSlots[i] = -1
		}
	}
	return outSlots, outScores, nil
}

// Save writes the index to path atomically (write temp, rename).
func (f *Flat) Save(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:], fileMagic)
	binary.LittleEndian.PutUint32(header[4:], fileVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(f.dim))
	binary.LittleEndian.PutUint32(header[12:], uint32(f.Len()))
	if _, err = file.Write(header); err != nil {
		file.Close()
		return fmt.Errorf("write index header: %w", err)
	}

	buf := make([]byte, len(f.data)*4)
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if _, err = file.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("write index data: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// LoadFlat reads an index previously written by Save.
func LoadFlat(path string) (*Flat, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("index file %s too short", path)
	}
	if binary.LittleEndian.Uint32(data[0:]) != fileMagic {
		return nil, fmt.Errorf("index file %s has bad magic", path)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != fileVersion {
		return nil, fmt.Errorf("index file %s has unsupported version %d", path, v)
	}

	dim := int(binary.LittleEndian.Uint32(data[8:]))
	count := int(binary.LittleEndian.Uint32(data[12:]))
	if dim <= 0 {
		return nil, fmt.Errorf("index file %s has invalid dimension %d", path, dim)
	}
	payload := data[16:]
	if len(payload) != dim*count*4 {
		return nil, fmt.Errorf("index file %s truncated: want %d vectors of dim %d", path, count, dim)
	}

	f := &Flat{dim: dim, data: make([]float32, dim*count)}
	for i := range f.data {
		f.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return f, nil
}

// Normalize scales v to unit L2 norm in place and returns it.
// The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
