// Package index keeps one vector sub-index per partition and the registry of which partition each user is in.
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/vector"
)

var (
	// ErrUserNotFound is returned when an id is not registered in either partition.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when an id is already registered in either partition.
	ErrDuplicateUser = vector.ErrDuplicateUser
)

// PartitionedIndex holds two independent append-only sub-indices keyed by partition.
// An id lives in at most one partition; the registry enforces that across both.
type PartitionedIndex struct {
	dimensions int
	subs       map[models.Partition]vector.Index
	registry   map[string]models.Partition
	mu         sync.RWMutex
}

// Stats reports the number of vectors per partition.
type Stats struct {
	Dimensions int                      `json:"dimensions"`
	Sizes      map[models.Partition]int `json:"sizes"`
	Total      int                      `json:"total"`
}

// NewPartitionedIndex creates empty in-memory sub-indices for both partitions.
func NewPartitionedIndex(dimensions int) (*PartitionedIndex, error) {
	subs := make(map[models.Partition]vector.Index, len(models.Partitions))
	for _, p := range models.Partitions {
		sub, err := vector.NewMemoryIndex(dimensions)
		if err != nil {
			return nil, fmt.Errorf("create %s index: %w", p, err)
		}
		subs[p] = sub
	}
	return &PartitionedIndex{
		dimensions: dimensions,
		subs:       subs,
		registry:   make(map[string]models.Partition),
	}, nil
}

// Insert adds vector for id to the partition's sub-index and records the id in the registry.
// Both happen under the registry lock so a registration is either fully visible or not at all.
func (p *PartitionedIndex) Insert(id string, partition models.Partition, vec []float32) (vector.Entry, error) {
	sub, err := p.sub(partition)
	if err != nil {
		return vector.Entry{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.registry[id]; ok {
		return vector.Entry{}, fmt.Errorf("%w: %s (partition %s)", ErrDuplicateUser, id, existing)
	}
	entry, err := sub.Insert(id, vec)
	if err != nil {
		return vector.Entry{}, err
	}
	p.registry[id] = partition
	return entry, nil
}

// Lookup returns the partition and stored vector for id.
func (p *PartitionedIndex) Lookup(id string) (models.Partition, []float32, error) {
	p.mu.RLock()
	partition, ok := p.registry[id]
	p.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	entry, ok := p.subs[partition].Get(id)
	if !ok {
		return "", nil, fmt.Errorf("registry and %s index disagree on %s", partition, id)
	}
	return partition, entry.Vector, nil
}

// Search runs an exact top-k search against one partition's sub-index.
func (p *PartitionedIndex) Search(partition models.Partition, query []float32, k int) ([]vector.Result, error) {
	sub, err := p.sub(partition)
	if err != nil {
		return nil, err
	}
	return sub.SearchTopK(query, k)
}

// Contains reports whether id is registered in any partition.
func (p *PartitionedIndex) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.registry[id]
	return ok
}

// Dimensions returns the vector dimension shared by both sub-indices.
func (p *PartitionedIndex) Dimensions() int {
	return p.dimensions
}

// Stats returns per-partition sizes.
func (p *PartitionedIndex) Stats() Stats {
	s := Stats{Dimensions: p.dimensions, Sizes: make(map[models.Partition]int, len(p.subs))}
	for partition, sub := range p.subs {
		n := sub.Size()
		s.Sizes[partition] = n
		s.Total += n
	}
	return s
}

func (p *PartitionedIndex) sub(partition models.Partition) (vector.Index, error) {
	sub, ok := p.subs[partition]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPartition, partition)
	}
	return sub, nil
}
