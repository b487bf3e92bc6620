package vector

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory append-only vector index using brute-force inner product search.
// Inserts are serialized by a write lock; searches share a read lock and never observe a partial entry.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	ordinals   map[string]int
	mu         sync.RWMutex
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dimensions)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		ordinals:   make(map[string]int),
	}, nil
}

// Insert appends vector under id at the next ordinal. The vector is copied.
func (m *MemoryIndex) Insert(id string, vector []float32) (Entry, error) {
	if len(vector) != m.dimensions {
		return Entry{}, &DimensionMismatchError{Expected: m.dimensions, Actual: len(vector)}
	}
	vec := make([]float32, m.dimensions)
	copy(vec, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ordinals[id]; ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateUser, id)
	}
	ordinal := len(m.ids)
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, vec)
	m.ordinals[id] = ordinal
	return Entry{Ordinal: ordinal, ID: id, Vector: copyVector(vec)}, nil
}

// SearchTopK returns at most k entries by descending inner product with query.
// Equal scores keep insertion order, so the earliest-registered entry ranks first.
func (m *MemoryIndex) SearchTopK(query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, &DimensionMismatchError{Expected: m.dimensions, Actual: len(query)}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return []Result{}, nil
	}
	scores := make([]Result, len(m.ids))
	for i, vec := range m.vectors {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j]) * float64(vec[j])
		}
		scores[i] = Result{ID: m.ids[i], Score: dot, Ordinal: i}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k:k], nil
}

// Get returns the entry stored under id. The returned vector is a copy.
func (m *MemoryIndex) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ordinal, ok := m.ordinals[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{Ordinal: ordinal, ID: id, Vector: copyVector(m.vectors[ordinal])}, true
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Dimensions returns the fixed vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
