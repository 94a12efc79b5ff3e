package store

import "github.com/pgvector/pgvector-go"

// Metadata keys present on every persisted chunk. The metadata column is an
// open JSONB bag; these keys are required, additional keys are allowed.
const (
	MetaSource    = "source"
	MetaChunkSize = "chunk_size"
	MetaCrawledAt = "crawled_at"
	MetaURLPath   = "url_path"
)

// Chunk is one bounded-size, boundary-aligned segment of a source document,
// the unit of storage and retrieval. (URL, ChunkNumber) is its identity;
// ChunkNumber values for a URL form a contiguous ascending sequence from 0.
type Chunk struct {
	URL         string
	ChunkNumber int
	Title       string
	Summary     string
	Content     string
	Metadata    map[string]any
	Embedding   pgvector.Vector
}

// Match is a similarity search hit.
type Match struct {
	Chunk
	Similarity float64
}

// Outcome reports what an upsert did.
type Outcome int

const (
	// OutcomeInserted means no row existed for the key and one was created.
	OutcomeInserted Outcome = iota
	// OutcomeUpdated means an existing row's non-key fields were replaced.
	OutcomeUpdated
	// OutcomeSkipped means a row existed and updateExisting was false.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
