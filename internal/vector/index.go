package vector

// Index is an append-only collection of fixed-dimension vectors with exact top-k inner-product search.
type Index interface {
	Insert(id string, vector []float32) (Entry, error)
	SearchTopK(query []float32, k int) ([]Result, error)
	Get(id string) (Entry, bool)
	Size() int
	Dimensions() int
}

// Entry is a stored vector and its insertion ordinal. Ordinals start at 0 and are never reused.
type Entry struct {
	Ordinal int
	ID      string
	Vector  []float32
}

// Result is a single search hit.
type Result struct {
	ID      string
	Score   float64 // Inner product; cosine similarity for normalized vectors
	Ordinal int
}
