package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrInvalidTenantID indicates a malformed or empty tenant ID.
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations can use local models
// (TEI) or cloud APIs (OpenAI).
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a chunk to be stored in a tenant's index.
type Document struct {
	// ID is the stable chunk identifier. Deterministic per
	// (tenant, file, page, index), so re-ingesting the same file is
	// idempotent.
	ID string

	// Content is the chunk text.
	Content string

	// Source is the originating filename.
	Source string

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]any
}

// Entry is one row of a tenant's catalog: the id-keyed record backing a
// vector in that tenant's collection. The collection stores id -> embedding;
// the catalog stores everything else.
type Entry struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// Result is a search hit.
type Result struct {
	ChunkID  string
	Content  string
	Source   string
	Metadata map[string]any

	// Score is the raw similarity score (higher = more similar).
	Score float64

	// KeywordScore and HybridScore are populated by HybridSearch.
	KeywordScore float64
	HybridScore  float64
}

// Stats summarizes a tenant's index.
type Stats struct {
	TenantID  string   `json:"tenant_id"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Files     []string `json:"files"`
}

// AddOptions controls AddDocuments behavior.
type AddOptions struct {
	// ReplaceExisting removes entries sharing the incoming chunks' source
	// filenames before inserting, so repeated uploads of the same file never
	// accumulate stale chunks.
	ReplaceExisting bool

	// ClearAll wipes the entire tenant index before inserting.
	ClearAll bool
}

// DefaultAddOptions returns the standard upsert-by-filename behavior.
func DefaultAddOptions() AddOptions {
	return AddOptions{ReplaceExisting: true}
}

// Filter restricts search results by metadata. A plain value requires an
// exact match; a slice value matches when the field's value is in the set.
type Filter map[string]any
