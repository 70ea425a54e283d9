// Package config provides configuration loading for ragd.
package config

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ChunkerConfig controls document splitting.
type ChunkerConfig struct {
	// Size is the chunk window in tokens.
	// Default: chunker.DefaultChunkSize
	Size int `koanf:"size"`

	// Overlap is the token overlap between consecutive chunks.
	// Default: chunker.DefaultChunkOverlap
	Overlap int `koanf:"overlap"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChunkerConfig) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = chunker.DefaultChunkSize
	}
	if c.Overlap == 0 {
		c.Overlap = chunker.DefaultChunkOverlap
	}
}

// Validate validates the configuration.
func (c *ChunkerConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunker size must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunker overlap must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Config is the full ragd configuration.
type Config struct {
	Logging     logging.Config     `koanf:"logging"`
	Chunker     ChunkerConfig      `koanf:"chunker"`
	Embeddings  embeddings.Config  `koanf:"embeddings"`
	LLM         llm.Config         `koanf:"llm"`
	VectorStore vectorstore.Config `koanf:"vectorstore"`
	Storage     tenant.Config      `koanf:"storage"`
}

// ApplyDefaults fills in defaults for every section.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	c.Chunker.ApplyDefaults()
	c.Embeddings.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.VectorStore.ApplyDefaults()
	c.Storage.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
