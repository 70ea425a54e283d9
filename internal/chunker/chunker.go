// Package chunker splits raw document bytes into ordered, overlapping text
// chunks ready for embedding.
//
// Extraction is dispatched on MIME type. Malformed or unsupported input never
// fails ingestion: the processor degrades to a single placeholder chunk so
// downstream indexing always has at least one entry per file.
package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Recognized MIME types.
const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMECSV  = "text/csv"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DefaultChunkSize is the default window size in tokens (or runes when no
// tokenizer is available).
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default overlap between consecutive chunks.
const DefaultChunkOverlap = 200

// Chunk is a bounded text segment extracted from a document. It is the unit
// of embedding and retrieval.
type Chunk struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	PageNumber int            `json:"page_number"`
	ChunkIndex int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata"`
}

// pageContent is one extracted (page, text) pair.
type pageContent struct {
	Text string
	Page int
}

// Processor splits documents into overlapping chunks.
type Processor struct {
	chunkSize int
	overlap   int
	encoder   *tiktoken.Tiktoken
	logger    *zap.Logger
}

// Option configures the processor.
type Option func(*Processor)

// WithChunkSize sets the window size.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a processor. Token-level splitting is used when the cl100k_base
// encoding can be loaded; otherwise chunking falls back to rune counts.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		p.logger.Warn("tokenizer unavailable, falling back to rune chunking", zap.Error(err))
	} else {
		p.encoder = encoder
	}

	return p
}

// Process extracts text from content and splits it into chunks. The returned
// slice is empty only when every extracted page is blank.
func (p *Processor) Process(ctx context.Context, content []byte, filename, mimeType, tenantID string) []Chunk {
	var pages []pageContent

	switch mimeType {
	case MIMEText:
		pages = extractText(content)
	case MIMEPDF:
		pages = p.extractPDF(content, filename)
	case MIMEDocx:
		pages = extractDocx(content)
	case MIMECSV, MIMEXLS, MIMEXLSX:
		pages = extractTabular(content, filename, mimeType)
	default:
		pages = []pageContent{{Text: fmt.Sprintf("Unsupported file type: %s", mimeType), Page: 1}}
	}

	var chunks []Chunk
	for _, page := range pages {
		chunks = append(chunks, p.chunkPage(page.Text, filename, tenantID, page.Page)...)
	}

	p.logger.Debug("processed document",
		zap.String("filename", filename),
		zap.String("mime_type", mimeType),
		zap.String("tenant_id", tenantID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
	)

	return chunks
}

// chunkPage splits one page's text into overlapping chunks. Blank pages are
// skipped.
func (p *Processor) chunkPage(text, filename, tenantID string, page int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parts []string
	if p.encoder != nil {
		parts = p.tokenWindows(text)
	} else {
		parts = p.runeWindows(text)
	}

	chunks := make([]Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, Chunk{
			ChunkID:    fmt.Sprintf("%s_%s_%d_%d", tenantID, filename, page, i),
			Content:    part,
			Source:     filename,
			PageNumber: page,
			ChunkIndex: i,
			Metadata: map[string]any{
				"filename":     filename,
				"tenant_id":    tenantID,
				"page_number":  page,
				"chunk_index":  i,
				"total_chunks": len(parts),
				"file_type":    strings.ToLower(filepath.Ext(filename)),
			},
		})
	}

	return chunks
}

// tokenWindows slides a chunkSize token window with the configured overlap.
func (p *Processor) tokenWindows(text string) []string {
	tokens := p.encoder.Encode(text, nil, nil)
	step := p.chunkSize - p.overlap

	var parts []string
	for start := 0; start < len(tokens); start += step {
		end := start + p.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		parts = append(parts, p.encoder.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return parts
}

// runeWindows is the fallback for when no tokenizer is available. Windows are
// rune-aligned so multibyte sequences are never split.
func (p *Processor) runeWindows(text string) []string {
	runes := []rune(text)
	step := p.chunkSize - p.overlap

	var parts []string
	for start := 0; start < len(runes); start += step {
		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}
