package domain

// IndexEntry is one windowed span of a chunk, embedded and ready for the
// vector index. Window numbers spans within one chunk from zero.
type IndexEntry struct {
	Fingerprint string
	Window      int
	Text        string
	Metadata    map[string]string
	Vector      []float32
}

// RetrievalResult pairs a chunk with its similarity score at query time.
// Ephemeral; never persisted. Scores are similarities in [0,1], higher is
// closer (cosine distance from the index converted to 1-distance).
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}
