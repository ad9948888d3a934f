package rag

// Chunk kind constants. These categorize what an indexed chunk was built
// from and drive context rendering.
const (
	// KindText represents a window of a plain text file.
	KindText = "text"

	// KindQA represents a rendered question/answer pair.
	KindQA = "qa"
)

// Chunk is one retrievable unit of the index.
// Immutable once indexed.
type Chunk struct {
	ID      string // Unique identifier within the collection
	Content string // Indexed text (for QA chunks, the rendered pair)
	Source  string // Originating file name
	Kind    string // KindText or KindQA

	// Question holds the original question for QA chunks, empty otherwise.
	Question string
}

// Result is a single search result with its similarity score.
// The embedding is carried along so MMR reranking can measure
// chunk-to-chunk similarity without re-embedding.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity to the query (0-1)
	Embedding  []float32
}
