// Package retriever composes the chunker, vector store, and tenant store
// into the ingestion and retrieval surface the rest of the system talks to.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.retriever")

// DefaultK is the number of chunks retrieved when the caller does not ask
// for a specific count.
const DefaultK = 5

// previewLength bounds chunk previews in document search results.
const previewLength = 200

// AddResult reports the outcome of a single document ingestion.
type AddResult struct {
	Success       bool   `json:"success"`
	ChunksCreated int    `json:"chunks_created"`
	Filename      string `json:"filename,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Source identifies where one retrieved chunk came from.
type Source struct {
	Filename    string  `json:"filename"`
	Page        int     `json:"page"`
	ChunkIndex  int     `json:"chunk_index"`
	Score       float64 `json:"score"`
	HybridScore float64 `json:"hybrid_score,omitempty"`
}

// ContextResult is an assembled context block with its provenance. A query
// with no hits yields ChunksFound 0 and an empty Context, not an error.
type ContextResult struct {
	Context     string   `json:"context"`
	Sources     []Source `json:"sources"`
	ChunksFound int      `json:"chunks_found"`
	TenantID    string   `json:"tenant_id"`
	Query       string   `json:"query"`
}

// QueryOptions controls a retrieval call.
type QueryOptions struct {
	// K is the maximum number of chunks to retrieve. Defaults to DefaultK.
	K int
	// UseHybrid blends keyword overlap into the semantic ranking.
	UseHybrid bool
	// KeywordWeight is the hybrid blend factor. Negative means the store
	// default.
	KeywordWeight float64
	// Filter restricts hits by metadata, e.g. {"filename": [...]}.
	Filter vectorstore.Filter
}

// DefaultQueryOptions returns the standard retrieval settings: top 5 chunks,
// hybrid ranking with the store's default keyword weight.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{K: DefaultK, UseHybrid: true, KeywordWeight: -1}
}

// ChunkPreview is a truncated chunk shown in document search results.
type ChunkPreview struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Page    int     `json:"page"`
}

// DocumentMatch groups a document's matching chunks under its best score.
type DocumentMatch struct {
	Filename  string         `json:"filename"`
	BestScore float64        `json:"best_score"`
	Chunks    []ChunkPreview `json:"chunks"`
}

// Service wires ingestion and retrieval across the chunker, the vector
// index, and the durable tenant store.
type Service struct {
	processor *chunker.Processor
	store     *vectorstore.Store
	tenants   *tenant.Manager
	logger    *zap.Logger
}

// NewService creates a retrieval service over the given stores.
func NewService(processor *chunker.Processor, store *vectorstore.Store, tenants *tenant.Manager, logger *zap.Logger) (*Service, error) {
	if processor == nil || store == nil || tenants == nil {
		return nil, errors.New("retriever: processor, store, and tenants are all required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		processor: processor,
		store:     store,
		tenants:   tenants,
		logger:    logger,
	}, nil
}

// AddDocument chunks and indexes one document, then persists its bytes and
// metadata to the tenant store. The vector index is written first; a vector
// failure leaves the tenant store untouched.
func (s *Service) AddDocument(ctx context.Context, content []byte, filename, fileType, tenantID string) AddResult {
	ctx, span := tracer.Start(ctx, "Service.AddDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("filename", filename),
	)

	result := AddResult{Filename: filename, TenantID: tenantID, FileType: fileType}

	chunks := s.processor.Process(ctx, content, filename, fileType, tenantID)
	if len(chunks) == 0 {
		result.Error = "no content could be extracted from the document"
		return result
	}

	if err := s.ensureTenant(tenantID); err != nil {
		result.Error = err.Error()
		return result
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			ID:       c.ChunkID,
			Content:  c.Content,
			Source:   c.Source,
			Metadata: c.Metadata,
		}
	}

	if err := s.store.AddDocuments(ctx, docs, tenantID, vectorstore.DefaultAddOptions()); err != nil {
		span.RecordError(err)
		result.ChunksCreated = len(chunks)
		result.Error = fmt.Sprintf("indexing document: %v", err)
		return result
	}

	if err := s.tenants.AddDocument(tenantID, filename, fileType, int64(len(content)), len(chunks), content); err != nil {
		span.RecordError(err)
		result.ChunksCreated = len(chunks)
		result.Error = fmt.Sprintf("persisting document: %v", err)
		return result
	}

	result.Success = true
	result.ChunksCreated = len(chunks)

	s.logger.Info("ingested document",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)
	return result
}

// ensureTenant registers the tenant on first ingestion.
func (s *Service) ensureTenant(tenantID string) error {
	if _, ok := s.tenants.GetTenant(tenantID); ok {
		return nil
	}
	_, err := s.tenants.CreateTenant(tenantID, "", tenantID)
	if err != nil && !errors.Is(err, tenant.ErrTenantExists) {
		return err
	}
	return nil
}

// RetrieveContext searches the tenant's index and assembles the hits into a
// single context block with source attributions.
func (s *Service) RetrieveContext(ctx context.Context, query, tenantID string, opts QueryOptions) (ContextResult, error) {
	ctx, span := tracer.Start(ctx, "Service.RetrieveContext")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("k", opts.K),
		attribute.Bool("hybrid", opts.UseHybrid),
	)

	if opts.K <= 0 {
		opts.K = DefaultK
	}

	result := ContextResult{
		Sources:  []Source{},
		TenantID: tenantID,
		Query:    query,
	}

	var (
		hits []vectorstore.Result
		err  error
	)
	if opts.UseHybrid {
		hits, err = s.store.HybridSearch(ctx, query, tenantID, opts.K, opts.Filter, opts.KeywordWeight)
	} else {
		hits, err = s.store.Search(ctx, query, tenantID, opts.K, opts.Filter)
	}
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("searching tenant %s: %w", tenantID, err)
	}
	if len(hits) == 0 {
		return result, nil
	}

	parts := make([]string, 0, len(hits))
	for i, hit := range hits {
		page := metaInt(hit.Metadata, "page_number", 1)
		source := Source{
			Filename:   hit.Source,
			Page:       page,
			ChunkIndex: metaInt(hit.Metadata, "chunk_index", 0),
			Score:      hit.Score,
		}
		if opts.UseHybrid {
			source.HybridScore = hit.HybridScore
		}
		result.Sources = append(result.Sources, source)

		header := fmt.Sprintf("[Source %d: %s]", i+1, hit.Source)
		if page > 0 {
			header += fmt.Sprintf(" (Page %d)", page)
		}
		parts = append(parts, header+"\n"+hit.Content)
	}

	result.Context = strings.Join(parts, "\n\n---\n\n")
	result.ChunksFound = len(hits)
	return result, nil
}

// RetrieveContextFromDocuments is RetrieveContext restricted to the named
// documents.
func (s *Service) RetrieveContextFromDocuments(ctx context.Context, query string, documentNames []string, tenantID string, k int, useHybrid bool) (ContextResult, error) {
	opts := DefaultQueryOptions()
	opts.K = k
	opts.UseHybrid = useHybrid
	opts.Filter = vectorstore.Filter{"filename": documentNames}
	return s.RetrieveContext(ctx, query, tenantID, opts)
}

// AvailableDocuments lists the tenant's stored document filenames in upload
// order.
func (s *Service) AvailableDocuments(tenantID string) []string {
	docs := s.tenants.TenantDocuments(tenantID)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.Filename)
	}
	return names
}

// TenantSummary reports the tenant's index statistics.
func (s *Service) TenantSummary(ctx context.Context, tenantID string) vectorstore.Stats {
	return s.store.TenantStats(tenantID)
}

// SearchDocuments runs a hybrid search and regroups the hits per document,
// best-scoring documents first, with truncated chunk previews.
func (s *Service) SearchDocuments(ctx context.Context, query, tenantID, fileFilter string, k int) ([]DocumentMatch, error) {
	if k <= 0 {
		k = 10
	}

	var filter vectorstore.Filter
	if fileFilter != "" {
		filter = vectorstore.Filter{"filename": fileFilter}
	}

	hits, err := s.store.HybridSearch(ctx, query, tenantID, k, filter, -1)
	if err != nil {
		return nil, fmt.Errorf("searching tenant %s: %w", tenantID, err)
	}

	byFile := make(map[string]*DocumentMatch)
	var order []string
	for _, hit := range hits {
		match, ok := byFile[hit.Source]
		if !ok {
			match = &DocumentMatch{Filename: hit.Source, BestScore: hit.HybridScore}
			byFile[hit.Source] = match
			order = append(order, hit.Source)
		}
		if hit.HybridScore > match.BestScore {
			match.BestScore = hit.HybridScore
		}
		match.Chunks = append(match.Chunks, ChunkPreview{
			Content: preview(hit.Content),
			Score:   hit.HybridScore,
			Page:    metaInt(hit.Metadata, "page_number", 1),
		})
	}

	matches := make([]DocumentMatch, 0, len(order))
	for _, filename := range order {
		matches = append(matches, *byFile[filename])
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].BestScore > matches[j].BestScore })
	return matches, nil
}

// DeleteDocument removes a document from both the vector index and the
// tenant store. Both removals are always attempted; the call succeeds only
// when both do.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, filename string) error {
	ctx, span := tracer.Start(ctx, "Service.DeleteDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("filename", filename),
	)

	vectorErr := s.store.RemoveFileEntries(ctx, filename, tenantID)
	storeErr := s.tenants.DeleteDocument(tenantID, filename)

	if err := errors.Join(vectorErr, storeErr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting %s for tenant %s: %w", filename, tenantID, err)
	}

	s.logger.Info("deleted document",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
	)
	return nil
}

// Reindex rebuilds the vector index for every tenant whose index disagrees
// with the tenant store, re-chunking each stored document. Individual
// document failures are logged and skipped. Returns the number of documents
// reindexed.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Service.Reindex")
	defer span.End()

	reindexed := 0
	for _, info := range s.tenants.ListTenants() {
		tenantID := info.TenantID
		docs := s.tenants.TenantDocuments(tenantID)

		if !s.store.NeedsRebuild(tenantID) && indexMatches(s.store.TenantStats(tenantID), docs) {
			continue
		}

		var batch []vectorstore.Document
		count := 0
		for _, doc := range docs {
			content, err := s.tenants.DocumentContent(tenantID, doc.Filename)
			if err != nil {
				s.logger.Warn("skipping unreadable document during reindex",
					zap.String("tenant_id", tenantID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
				continue
			}
			chunks := s.processor.Process(ctx, content, doc.Filename, doc.FileType, tenantID)
			for _, c := range chunks {
				batch = append(batch, vectorstore.Document{
					ID:       c.ChunkID,
					Content:  c.Content,
					Source:   c.Source,
					Metadata: c.Metadata,
				})
			}
			count++
		}

		if len(batch) == 0 {
			continue
		}
		if err := s.store.AddDocuments(ctx, batch, tenantID, vectorstore.AddOptions{ClearAll: true}); err != nil {
			span.RecordError(err)
			s.logger.Error("reindexing tenant failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}

		reindexed += count
		s.logger.Info("reindexed tenant",
			zap.String("tenant_id", tenantID),
			zap.Int("documents", count),
			zap.Int("chunks", len(batch)),
		)
	}

	span.SetAttributes(attribute.Int("documents", reindexed))
	return reindexed, nil
}

// indexMatches reports whether the index already holds the same set of
// files as the tenant store.
func indexMatches(stats vectorstore.Stats, docs []*tenant.DocumentInfo) bool {
	if stats.Documents != len(docs) {
		return false
	}
	indexed := make(map[string]bool, len(stats.Files))
	for _, f := range stats.Files {
		indexed[f] = true
	}
	for _, doc := range docs {
		if !indexed[doc.Filename] {
			return false
		}
	}
	return true
}

// preview truncates chunk content for search listings.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// metaInt reads an integer metadata value, tolerating JSON float64.
func metaInt(metadata map[string]any, key string, fallback int) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
