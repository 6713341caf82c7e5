package vector

import (
	"fmt"
	"sort"

	"github.com/hyperjump/helpmate/internal/models"
)

// MemoryIndex is a brute-force inner product index over chunks. It is not safe for
// concurrent mutation; Store guards it.
type MemoryIndex struct {
	dimensions int
	chunks     []*models.TextChunk
	vectors    [][]float32
}

// NewMemoryIndex creates an empty index. With dimensions 0 the dimension is taken from
// the first vector added.
func NewMemoryIndex(dimensions int) *MemoryIndex {
	return &MemoryIndex{dimensions: dimensions}
}

// Add appends a chunk with a unit-normalized copy of vec. Insertion order is kept and
// breaks score ties in Search.
func (m *MemoryIndex) Add(chunk *models.TextChunk, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("chunk %d has no embedding", chunk.ChunkIndex)
	}
	if m.dimensions == 0 {
		m.dimensions = len(vec)
	}
	if len(vec) != m.dimensions {
		return fmt.Errorf("chunk %d: vector dimension mismatch: got %d, expected %d", chunk.ChunkIndex, len(vec), m.dimensions)
	}
	m.chunks = append(m.chunks, chunk)
	m.vectors = append(m.vectors, Normalize(vec))
	return nil
}

// Search returns at most k chunks by descending inner product with query.
func (m *MemoryIndex) Search(query []float32, k int) []models.ScoredChunk {
	if k <= 0 || len(m.chunks) == 0 {
		return nil
	}
	scores := make([]models.ScoredChunk, len(m.chunks))
	for i, vec := range m.vectors {
		scores[i] = models.ScoredChunk{Score: InnerProduct(query, vec), Chunk: m.chunks[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}

// Len returns the number of indexed chunks.
func (m *MemoryIndex) Len() int {
	return len(m.chunks)
}

// Dimensions returns the vector dimension, or 0 if nothing was added yet.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}
