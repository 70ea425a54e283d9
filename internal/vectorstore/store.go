// Package vectorstore provides per-tenant vector indexing over chromem-go.
//
// Each tenant owns an independent chromem collection holding id -> embedding,
// paired with an explicit catalog of id-keyed entries (content, source,
// metadata). Deletion never touches positions: matching IDs are collected
// from the catalog and removed from the collection by ID, so the collection
// count and catalog length stay equal by construction.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.vectorstore")

// tenantIDPattern constrains tenant IDs to filesystem- and collection-safe
// names.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// maxTenantIDLength bounds tenant IDs so collection names stay valid.
const maxTenantIDLength = 64

// Config holds configuration for the vector store.
type Config struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/ragd/vectorstore"
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored vector data.
	Compress bool `koanf:"compress"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/ragd/vectorstore"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return nil
}

// Store indexes document chunks per tenant and serves semantic and hybrid
// search over them.
type Store struct {
	db         *chromem.DB
	embedder   Embedder
	config     Config
	logger     *zap.Logger
	catalogDir string

	mu       sync.RWMutex
	catalogs map[string][]Entry
}

// catalogFile is the persisted form of one tenant's catalog.
type catalogFile struct {
	TenantID string  `json:"tenant_id"`
	Entries  []Entry `json:"entries"`
}

// NewStore creates a Store rooted at config.Path and reloads every persisted
// tenant catalog found there.
func NewStore(config Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	catalogDir := filepath.Join(path, "catalog")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(path, "chromem"), config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	s := &Store{
		db:         db,
		embedder:   embedder,
		config:     config,
		logger:     logger,
		catalogDir: catalogDir,
		catalogs:   make(map[string][]Entry),
	}

	if err := s.loadCatalogs(); err != nil {
		return nil, fmt.Errorf("loading catalogs: %w", err)
	}

	logger.Info("vector store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("tenants", len(s.catalogs)),
	)

	return s, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func validateTenantID(tenantID string) error {
	if tenantID == "" || len(tenantID) > maxTenantIDLength || !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

func collectionName(tenantID string) string {
	return "tenant_" + tenantID
}

// embeddingFunc adapts the Embedder to chromem's query embedding hook.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// AddDocuments embeds docs in one batch and inserts them into the tenant's
// index, creating it lazily on first write.
//
// With opts.ReplaceExisting, entries sharing the incoming docs' source
// filenames are removed first (upsert-by-filename). With opts.ClearAll the
// whole tenant index is wiped before inserting.
func (s *Store) AddDocuments(ctx context.Context, docs []Document, tenantID string, opts AddOptions) error {
	ctx, span := tracer.Start(ctx, "Store.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("document_count", len(docs)),
	)

	if err := validateTenantID(tenantID); err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	// Embed before mutating anything so an embedding failure leaves the
	// index untouched.
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case opts.ClearAll:
		if err := s.clearTenantLocked(ctx, tenantID); err != nil {
			span.RecordError(err)
			return err
		}
	case opts.ReplaceExisting:
		for _, source := range distinctSources(docs) {
			if _, err := s.removeFileEntriesLocked(ctx, source, tenantID); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}

	collection, err := s.db.GetOrCreateCollection(collectionName(tenantID), nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting/creating collection for tenant %s: %w", tenantID, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	entries := make([]Entry, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  metadataToString(doc.Metadata),
			Embedding: embeddings[i],
		}
		entries[i] = Entry{
			ChunkID:  doc.ID,
			Content:  doc.Content,
			Source:   doc.Source,
			Metadata: doc.Metadata,
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	s.mergeEntriesLocked(tenantID, entries)
	if err := s.saveCatalogLocked(tenantID); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents to tenant index",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(docs)),
	)

	return nil
}

// mergeEntriesLocked folds entries into the tenant's catalog. Chromem
// overwrites documents by ID, so an incoming chunk ID that is already
// catalogued replaces its row in place instead of appending a duplicate.
// This keeps the catalog length equal to the collection count.
func (s *Store) mergeEntriesLocked(tenantID string, entries []Entry) {
	catalog := s.catalogs[tenantID]
	index := make(map[string]int, len(catalog))
	for i, entry := range catalog {
		index[entry.ChunkID] = i
	}
	for _, entry := range entries {
		if i, ok := index[entry.ChunkID]; ok {
			catalog[i] = entry
			continue
		}
		catalog = append(catalog, entry)
		index[entry.ChunkID] = len(catalog) - 1
	}
	s.catalogs[tenantID] = catalog
}

// distinctSources returns the unique source filenames in insertion order.
func distinctSources(docs []Document) []string {
	seen := make(map[string]bool, len(docs))
	var sources []string
	for _, doc := range docs {
		if !seen[doc.Source] {
			seen[doc.Source] = true
			sources = append(sources, doc.Source)
		}
	}
	return sources
}

// RemoveFileEntries deletes all of filename's chunks from the tenant's index.
// Removing the last entry leaves an empty index, not an error.
func (s *Store) RemoveFileEntries(ctx context.Context, filename, tenantID string) error {
	ctx, span := tracer.Start(ctx, "Store.RemoveFileEntries")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("filename", filename),
	)

	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.removeFileEntriesLocked(ctx, filename, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if removed > 0 {
		if err := s.saveCatalogLocked(tenantID); err != nil {
			span.RecordError(err)
			return err
		}
	}

	span.SetAttributes(attribute.Int("removed", removed))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("removed file entries",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
		zap.Int("removed", removed),
	)

	return nil
}

// removeFileEntriesLocked collects catalog IDs whose source matches filename,
// deletes them from the collection by ID, and drops the rows. Caller holds
// the write lock and persists the catalog.
func (s *Store) removeFileEntriesLocked(ctx context.Context, filename, tenantID string) (int, error) {
	entries, ok := s.catalogs[tenantID]
	if !ok {
		return 0, nil
	}

	var ids []string
	keep := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Source == filename {
			ids = append(ids, entry.ChunkID)
		} else {
			keep = append(keep, entry)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	collection := s.db.GetCollection(collectionName(tenantID), s.embeddingFunc())
	if collection != nil {
		if err := collection.Delete(ctx, nil, nil, ids...); err != nil {
			return 0, fmt.Errorf("deleting %d entries for %s: %w", len(ids), filename, err)
		}
	}

	s.catalogs[tenantID] = keep
	return len(ids), nil
}

// clearTenantLocked wipes the tenant's collection and catalog.
func (s *Store) clearTenantLocked(ctx context.Context, tenantID string) error {
	if err := s.db.DeleteCollection(collectionName(tenantID)); err != nil {
		return fmt.Errorf("clearing collection for tenant %s: %w", tenantID, err)
	}
	s.catalogs[tenantID] = nil
	return nil
}

// DeleteTenantData removes the tenant's collection, catalog, and persisted
// files.
func (s *Store) DeleteTenantData(ctx context.Context, tenantID string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteTenantData")
	defer span.End()

	span.SetAttributes(attribute.String("tenant_id", tenantID))

	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName(tenantID)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection for tenant %s: %w", tenantID, err)
	}

	delete(s.catalogs, tenantID)
	if err := os.Remove(s.catalogPath(tenantID)); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		return fmt.Errorf("removing catalog file: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("deleted tenant data", zap.String("tenant_id", tenantID))

	return nil
}

// TenantStats summarizes the tenant's index. Unknown tenants report zero.
func (s *Store) TenantStats(tenantID string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TenantID: tenantID}
	entries, ok := s.catalogs[tenantID]
	if !ok {
		stats.Files = []string{}
		return stats
	}

	seen := make(map[string]bool)
	files := make([]string, 0)
	for _, entry := range entries {
		if !seen[entry.Source] {
			seen[entry.Source] = true
			files = append(files, entry.Source)
		}
	}

	stats.Documents = len(files)
	stats.Chunks = len(entries)
	stats.Files = files
	return stats
}

// ListTenants returns the IDs of all tenants with catalogs, sorted.
func (s *Store) ListTenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]string, 0, len(s.catalogs))
	for tenantID := range s.catalogs {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return tenants
}

// IndexCount returns the number of vectors in the tenant's collection. It
// equals the catalog length whenever the store is consistent.
func (s *Store) IndexCount(tenantID string) int {
	collection := s.db.GetCollection(collectionName(tenantID), s.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// NeedsRebuild reports whether the tenant's vector data disagrees with its
// catalog, e.g. after a crash between flushes. Rebuild is done by
// re-ingesting the tenant's documents from durable storage.
func (s *Store) NeedsRebuild(tenantID string) bool {
	s.mu.RLock()
	entries := len(s.catalogs[tenantID])
	s.mu.RUnlock()
	return s.IndexCount(tenantID) != entries
}

func (s *Store) catalogPath(tenantID string) string {
	return filepath.Join(s.catalogDir, tenantID+".json")
}

// saveCatalogLocked flushes one tenant's catalog to disk. Caller holds the
// write lock.
func (s *Store) saveCatalogLocked(tenantID string) error {
	file := catalogFile{
		TenantID: tenantID,
		Entries:  s.catalogs[tenantID],
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog for tenant %s: %w", tenantID, err)
	}
	if err := os.WriteFile(s.catalogPath(tenantID), data, 0o644); err != nil {
		return fmt.Errorf("writing catalog for tenant %s: %w", tenantID, err)
	}
	return nil
}

// loadCatalogs reloads every persisted tenant catalog. Unreadable files are
// skipped with a warning so one corrupt tenant never blocks the rest.
func (s *Store) loadCatalogs() error {
	dirEntries, err := os.ReadDir(s.catalogDir)
	if err != nil {
		return fmt.Errorf("reading catalog directory: %w", err)
	}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.catalogDir, dirEntry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable catalog", zap.String("file", dirEntry.Name()), zap.Error(err))
			continue
		}
		var file catalogFile
		if err := json.Unmarshal(data, &file); err != nil {
			s.logger.Warn("skipping corrupt catalog", zap.String("file", dirEntry.Name()), zap.Error(err))
			continue
		}
		tenantID := file.TenantID
		if tenantID == "" {
			tenantID = strings.TrimSuffix(dirEntry.Name(), ".json")
		}
		s.catalogs[tenantID] = file.Entries
	}

	return nil
}

// metadataToString converts metadata for chromem, which stores string maps.
func metadataToString(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%f", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}
