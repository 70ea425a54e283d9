// Package tenant tracks tenants and their uploaded documents.
//
// The Manager keeps the authoritative record of what each tenant has
// uploaded: document metadata in JSON catalogs and the raw file bytes in
// per-tenant directories. The vector index is derived data; when the two
// disagree, this store wins and the index is rebuilt from it.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Common errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidTenantID  = errors.New("invalid tenant ID")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrTenantExists     = errors.New("tenant already exists")
	ErrDocumentNotFound = errors.New("document not found")
)

// tenantIDPattern constrains tenant IDs to filesystem-safe names.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxTenantIDLength = 64

// Info describes a tenant. DocumentCount and TotalChunks are recomputed
// from the document list after every mutation, never incremented.
type Info struct {
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	DocumentCount int       `json:"document_count"`
	TotalChunks   int       `json:"total_chunks"`
}

// DocumentInfo describes one uploaded document. Filename is unique per
// tenant; re-uploading replaces the record and the stored bytes.
type DocumentInfo struct {
	Filename      string    `json:"filename"`
	TenantID      string    `json:"tenant_id"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	UploadDate    time.Time `json:"upload_date"`
	ChunksCreated int       `json:"chunks_created"`
	FilePath      string    `json:"file_path"`
}

// Stats summarizes a tenant's stored documents.
type Stats struct {
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Exists        bool      `json:"exists"`
	DocumentCount int       `json:"document_count"`
	TotalChunks   int       `json:"total_chunks"`
	TotalSize     int64     `json:"total_size"`
	Files         []string  `json:"files"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	LastAccessed  time.Time `json:"last_accessed,omitempty"`
}

// Config holds configuration for the tenant store.
type Config struct {
	// Path is the directory for tenant catalogs and document blobs.
	// Default: "~/.config/ragd/tenants"
	Path string `koanf:"path"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/ragd/tenants"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return nil
}

func validateTenantID(tenantID string) error {
	if tenantID == "" || len(tenantID) > maxTenantIDLength || !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}
