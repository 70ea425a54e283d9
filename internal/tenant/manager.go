package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tenantsFile   = "tenants.json"
	documentsFile = "documents.json"
)

// Manager stores tenant records, document metadata, and the uploaded file
// bytes under a single storage directory.
type Manager struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	tenants   map[string]*Info
	documents map[string][]*DocumentInfo
}

// NewManager creates a Manager rooted at config.Path and loads any persisted
// catalogs found there.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
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
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	m := &Manager{
		path:      path,
		logger:    logger,
		tenants:   make(map[string]*Info),
		documents: make(map[string][]*DocumentInfo),
	}
	m.load()

	logger.Info("tenant store initialized",
		zap.String("path", path),
		zap.Int("tenants", len(m.tenants)),
	)

	return m, nil
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

// CreateTenant registers a new tenant. An empty tenantID generates a short
// random one. Returns the tenant ID.
func (m *Manager) CreateTenant(name, email, tenantID string) (string, error) {
	if tenantID == "" {
		tenantID = uuid.NewString()[:8]
	}
	if err := validateTenantID(tenantID); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[tenantID]; exists {
		return "", fmt.Errorf("%w: %s", ErrTenantExists, tenantID)
	}

	now := time.Now().UTC()
	m.tenants[tenantID] = &Info{
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		CreatedAt:    now,
		LastAccessed: now,
	}
	m.documents[tenantID] = []*DocumentInfo{}

	if err := m.saveLocked(); err != nil {
		return "", err
	}

	m.logger.Info("created tenant", zap.String("tenant_id", tenantID), zap.String("name", name))
	return tenantID, nil
}

// GetTenant returns the tenant record and touches its LastAccessed time.
func (m *Manager) GetTenant(tenantID string) (*Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.tenants[tenantID]
	if !ok {
		return nil, false
	}

	info.LastAccessed = time.Now().UTC()
	if err := m.saveLocked(); err != nil {
		m.logger.Warn("persisting last-accessed time", zap.Error(err))
	}

	copied := *info
	return &copied, true
}

// ListTenants returns all tenant records, sorted by ID.
func (m *Manager) ListTenants() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]*Info, 0, len(m.tenants))
	for _, info := range m.tenants {
		copied := *info
		tenants = append(tenants, &copied)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].TenantID < tenants[j].TenantID })
	return tenants
}

// AddDocument stores the file bytes under the tenant's directory and upserts
// the metadata record keyed by filename. Aggregate counts are recomputed
// from the resulting document list.
func (m *Manager) AddDocument(tenantID, filename, fileType string, fileSize int64, chunksCreated int, content []byte) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}
	if err := validateFilename(filename); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}

	tenantDir := filepath.Join(m.path, tenantID)
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		return fmt.Errorf("creating tenant directory: %w", err)
	}

	filePath := filepath.Join(tenantDir, filename)
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		return fmt.Errorf("writing document file: %w", err)
	}

	record := &DocumentInfo{
		Filename:      filename,
		TenantID:      tenantID,
		FileType:      fileType,
		FileSize:      fileSize,
		UploadDate:    time.Now().UTC(),
		ChunksCreated: chunksCreated,
		FilePath:      filePath,
	}

	docs := m.documents[tenantID]
	replaced := false
	for i, doc := range docs {
		if doc.Filename == filename {
			docs[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, record)
	}
	m.documents[tenantID] = docs

	m.recomputeAggregatesLocked(tenantID)
	if err := m.saveLocked(); err != nil {
		return err
	}

	m.logger.Debug("stored document",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
		zap.Int("chunks", chunksCreated),
		zap.Bool("replaced", replaced),
	)

	return nil
}

// TenantDocuments returns the tenant's document records.
func (m *Manager) TenantDocuments(tenantID string) []*DocumentInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.documents[tenantID]
	out := make([]*DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		copied := *doc
		out = append(out, &copied)
	}
	return out
}

// DocumentContent reads back the stored bytes of one document.
func (m *Manager) DocumentContent(tenantID, filename string) ([]byte, error) {
	m.mu.RLock()
	var filePath string
	for _, doc := range m.documents[tenantID] {
		if doc.Filename == filename {
			filePath = doc.FilePath
			break
		}
	}
	m.mu.RUnlock()

	if filePath == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, tenantID, filename)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", filename, err)
	}
	return content, nil
}

// DeleteDocument removes a document's metadata record and its stored bytes.
// A missing blob is logged and tolerated; the metadata removal is what
// decides success.
func (m *Manager) DeleteDocument(tenantID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.documents[tenantID]
	idx := -1
	for i, doc := range docs {
		if doc.Filename == filename {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, tenantID, filename)
	}

	filePath := docs[idx].FilePath
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn("document file already missing",
				zap.String("tenant_id", tenantID),
				zap.String("filename", filename),
			)
		} else {
			m.logger.Warn("could not delete document file",
				zap.String("path", filePath),
				zap.Error(err),
			)
		}
	}

	m.documents[tenantID] = append(docs[:idx], docs[idx+1:]...)
	m.recomputeAggregatesLocked(tenantID)
	if err := m.saveLocked(); err != nil {
		return err
	}

	m.logger.Info("deleted document",
		zap.String("tenant_id", tenantID),
		zap.String("filename", filename),
	)
	return nil
}

// CleanupOrphanedReferences drops document records whose stored file no
// longer exists and returns how many were removed. Intended to run once at
// startup.
func (m *Manager) CleanupOrphanedReferences() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for tenantID, docs := range m.documents {
		if len(docs) == 0 {
			continue
		}

		valid := docs[:0:0]
		for _, doc := range docs {
			if _, err := os.Stat(doc.FilePath); err == nil {
				valid = append(valid, doc)
			} else {
				m.logger.Warn("removing orphaned document reference",
					zap.String("tenant_id", tenantID),
					zap.String("filename", doc.Filename),
				)
				removed++
			}
		}
		if len(valid) != len(docs) {
			m.documents[tenantID] = valid
			m.recomputeAggregatesLocked(tenantID)
		}
	}

	if removed > 0 {
		if err := m.saveLocked(); err != nil {
			m.logger.Warn("persisting cleanup", zap.Error(err))
		}
		m.logger.Info("cleaned up orphaned document references", zap.Int("removed", removed))
	}

	return removed
}

// TenantStats summarizes a tenant's documents. Unknown tenants report
// Exists=false with zero counts.
func (m *Manager) TenantStats(tenantID string) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.tenants[tenantID]
	if !ok {
		return Stats{TenantID: tenantID, Files: []string{}}
	}

	docs := m.documents[tenantID]
	var totalSize int64
	files := make([]string, 0, len(docs))
	for _, doc := range docs {
		totalSize += doc.FileSize
		files = append(files, doc.Filename)
	}

	return Stats{
		TenantID:      tenantID,
		Name:          info.Name,
		Email:         info.Email,
		Exists:        true,
		DocumentCount: len(docs),
		TotalChunks:   info.TotalChunks,
		TotalSize:     totalSize,
		Files:         files,
		CreatedAt:     info.CreatedAt,
		LastAccessed:  info.LastAccessed,
	}
}

// recomputeAggregatesLocked rederives the tenant's counters from its
// document list. Caller holds the write lock.
func (m *Manager) recomputeAggregatesLocked(tenantID string) {
	info, ok := m.tenants[tenantID]
	if !ok {
		return
	}

	docs := m.documents[tenantID]
	chunks := 0
	for _, doc := range docs {
		chunks += doc.ChunksCreated
	}
	info.DocumentCount = len(docs)
	info.TotalChunks = chunks
	info.LastAccessed = time.Now().UTC()
}

// validateFilename rejects names that would escape the tenant directory.
func validateFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}

// saveLocked flushes both catalogs. Caller holds the write lock.
func (m *Manager) saveLocked() error {
	if err := writeJSON(filepath.Join(m.path, tenantsFile), m.tenants); err != nil {
		return fmt.Errorf("writing tenants catalog: %w", err)
	}
	if err := writeJSON(filepath.Join(m.path, documentsFile), m.documents); err != nil {
		return fmt.Errorf("writing documents catalog: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// load reads both catalogs if present. Corrupt files are skipped with a
// warning so a damaged catalog never blocks startup.
func (m *Manager) load() {
	if data, err := os.ReadFile(filepath.Join(m.path, tenantsFile)); err == nil {
		if err := json.Unmarshal(data, &m.tenants); err != nil {
			m.logger.Warn("skipping corrupt tenants catalog", zap.Error(err))
			m.tenants = make(map[string]*Info)
		}
	}
	if data, err := os.ReadFile(filepath.Join(m.path, documentsFile)); err == nil {
		if err := json.Unmarshal(data, &m.documents); err != nil {
			m.logger.Warn("skipping corrupt documents catalog", zap.Error(err))
			m.documents = make(map[string][]*DocumentInfo)
		}
	}
}
