// Package vecindex provides a flat in-memory inner-product index.
//
// With unit-length vectors the inner product equals cosine similarity, so
// callers normalize with Normalize before Add and before Search.
package vecindex

import (
	"fmt"
	"math"
	"sort"
)

// Hit is one search result: the position of the vector in insertion order
// and its inner-product score against the query.
type Hit struct {
	Index int
	Score float32
}

// Flat is a brute-force inner-product index. It is built once per engine
// build and read-only afterwards; no internal locking.
type Flat struct {
	dim  int
	vecs [][]float32
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vecindex: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Add appends vectors in order. Index positions are assigned sequentially,
// so position i corresponds to the i-th added vector.
func (f *Flat) Add(vecs ...[]float32) error {
	for _, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("vecindex: vector dimension %d does not match index dimension %d", len(v), f.dim)
		}
		f.vecs = append(f.vecs, v)
	}
	return nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	return len(f.vecs)
}

// Dimension returns the index's vector dimension.
func (f *Flat) Dimension() int {
	return f.dim
}

// Search returns up to k hits ordered by descending inner product. Equal
// scores keep insertion order. An empty index yields no hits.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("vecindex: query dimension %d does not match index dimension %d", len(query), f.dim)
	}
	if k <= 0 || len(f.vecs) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(f.vecs))
	for i, v := range f.vecs {
		hits = append(hits, Hit{Index: i, Score: dot(query, v)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize scales vec to unit length in place. Zero vectors are left as-is.
func Normalize(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
