package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultKeywordWeight is the standard lexical share in hybrid scoring.
const DefaultKeywordWeight = 0.3

// Search performs semantic search over the tenant's index.
//
// The query is embedded once; 2k nearest neighbors are requested to absorb
// post-filtering loss, the optional filter is applied while accumulating, and
// collection stops once k results are gathered or candidates run out.
//
// An unknown or empty tenant yields an empty result set, not an error.
func (s *Store) Search(ctx context.Context, query, tenantID string, k int, filter Filter) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("k", k),
	)

	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.catalogs[tenantID]
	if !ok || len(entries) == 0 {
		return nil, nil
	}

	collection := s.db.GetCollection(collectionName(tenantID), s.embeddingFunc())
	if collection == nil {
		return nil, nil
	}
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}

	fetch := 2 * k
	if fetch > count {
		fetch = count
	}

	hits, err := collection.Query(ctx, query, fetch, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying tenant %s: %w", tenantID, err)
	}

	byID := make(map[string]*Entry, len(entries))
	for i := range entries {
		byID[entries[i].ChunkID] = &entries[i]
	}

	results := make([]Result, 0, k)
	for _, hit := range hits {
		entry, ok := byID[hit.ID]
		if !ok {
			continue
		}
		if !matchesFilter(entry, filter) {
			continue
		}
		results = append(results, Result{
			ChunkID:  entry.ChunkID,
			Content:  entry.Content,
			Source:   entry.Source,
			Metadata: entry.Metadata,
			Score:    float64(hit.Similarity),
		})
		if len(results) >= k {
			break
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("semantic search",
		zap.String("tenant_id", tenantID),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// HybridSearch fuses semantic similarity with lexical keyword overlap.
//
// Purely semantic search can rank a paraphrase above a passage containing the
// literal query terms; blending in the word-overlap ratio corrects for that.
// keywordWeight in [0,1] sets the lexical share; values below zero select
// DefaultKeywordWeight.
func (s *Store) HybridSearch(ctx context.Context, query, tenantID string, k int, filter Filter, keywordWeight float64) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Store.HybridSearch")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("k", k),
	)

	if keywordWeight < 0 {
		keywordWeight = DefaultKeywordWeight
	}

	candidates, err := s.Search(ctx, query, tenantID, 2*k, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	queryWords := wordSet(query)
	for i := range candidates {
		keyword := keywordOverlap(queryWords, candidates[i].Content)
		candidates[i].KeywordScore = keyword
		candidates[i].HybridScore = (1-keywordWeight)*candidates[i].Score + keywordWeight*keyword
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].HybridScore > candidates[j].HybridScore
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	span.SetAttributes(attribute.Int("results", len(candidates)))
	span.SetStatus(codes.Ok, "success")

	return candidates, nil
}

// wordSet tokenizes text into a lowercase whitespace-separated word set.
func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		words[word] = true
	}
	return words
}

// keywordOverlap is |query words ∩ content words| / |query words|.
func keywordOverlap(queryWords map[string]bool, content string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	contentWords := wordSet(content)
	matched := 0
	for word := range queryWords {
		if contentWords[word] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// matchesFilter applies the metadata filter to an entry. A slice-valued
// filter matches when the field's value is in the set; anything else requires
// an exact match. The source and chunk_id fields are addressable alongside
// the metadata map.
func matchesFilter(entry *Entry, filter Filter) bool {
	for key, want := range filter {
		got, ok := entry.Metadata[key]
		if !ok {
			switch key {
			case "source":
				got = entry.Source
			case "chunk_id":
				got = entry.ChunkID
			default:
				return false
			}
		}

		switch want := want.(type) {
		case []string:
			if !containsValue(stringsToAny(want), got) {
				return false
			}
		case []any:
			if !containsValue(want, got) {
				return false
			}
		default:
			if !valuesEqual(want, got) {
				return false
			}
		}
	}
	return true
}

func stringsToAny(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func containsValue(set []any, value any) bool {
	for _, candidate := range set {
		if valuesEqual(candidate, value) {
			return true
		}
	}
	return false
}

// valuesEqual compares filter values loosely: catalog metadata round-trips
// through JSON, so ints come back as float64.
func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
