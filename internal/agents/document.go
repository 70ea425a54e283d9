package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/retriever"
)

// documentKeywords score a message toward the document handler. Matching is
// substring-based, so "doc" also catches "docs" and "documentation".
var documentKeywords = []string{
	"document", "pdf", "file", "text", "analyze", "summary", "summarize",
	"read", "content", "extract", "information", "doc", "paper", "report",
	"article", "research", "study", "findings", "data", "table", "chart",
}

// followupPhrases indicate the message continues a prior document exchange.
var followupPhrases = []string{
	"more details", "further details", "tell me more", "elaborate", "expand on",
	"what about", "how about", "also", "additionally", "furthermore", "besides",
	"can you explain", "what else", "any other", "continue", "go on",
}

var (
	explicitDocRef = regexp.MustCompile(`\b(this|the)\s+(document|file|pdf|paper)\b`)
	anaphoraRef    = regexp.MustCompile(`\b(it|that|them|those|these)\b`)
	docMentionRef  = regexp.MustCompile(`doc|file|pdf`)
)

// ordinalRefs maps ordinal words to indexes into the tenant's upload order.
// -1 means the most recent upload. Ordered so resolution is deterministic.
var ordinalRefs = []struct {
	word  string
	index int
}{
	{"first", 0}, {"1st", 0},
	{"second", 1}, {"2nd", 1},
	{"third", 2}, {"3rd", 2},
	{"fourth", 3}, {"4th", 3},
	{"fifth", 4}, {"5th", 4},
	{"last", -1}, {"final", -1},
}

const documentAnswerPrompt = `You are a document Q&A assistant. Use the provided context from documents to answer the question accurately. Cite the source document and page when referencing information. If the context is incomplete but contains relevant information, provide what you can. Only if the context contains no relevant information, say that it is not available in the provided documents. Use the conversation history to resolve follow-up questions.

Context from documents:
%s

Available sources:
%s

Conversation history:
%s`

const noDocumentsResponse = `I can help with document analysis. To get started:
1. Upload your documents (PDF, DOCX, TXT, CSV, Excel)
2. They are indexed automatically for search
3. Ask questions and I will find the most relevant information

Try questions like "What are the main findings?" or "Summarize the key points from the report".`

// DocumentHandler answers questions about ingested documents using
// retrieved context.
type DocumentHandler struct {
	retriever *retriever.Service
	generator Generator
	logger    *zap.Logger
}

// NewDocumentHandler creates the document Q&A handler.
func NewDocumentHandler(svc *retriever.Service, generator Generator, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{retriever: svc, generator: generator, logger: logger}
}

func (h *DocumentHandler) Name() string { return "document-qa" }

func (h *DocumentHandler) Description() string {
	return "Answers questions about uploaded documents using retrieval"
}

// Score follows keyword density with boosts for explicit document
// references and follow-up turns. Attached files dominate everything else.
func (h *DocumentHandler) Score(message string, rctx *RequestContext) float64 {
	if rctx != nil && len(rctx.UploadedFiles) > 0 {
		return 0.9
	}

	lower := strings.ToLower(message)

	matches := 0
	for _, keyword := range documentKeywords {
		if strings.Contains(lower, keyword) {
			matches++
		}
	}
	confidence := float64(matches) * 0.2
	if confidence > 0.8 {
		confidence = 0.8
	}

	for _, phrase := range []string{"what does", "tell me about", "explain"} {
		if strings.Contains(lower, phrase) {
			confidence += 0.1
			break
		}
	}
	if explicitDocRef.MatchString(lower) {
		confidence += 0.2
	}

	if isDocumentFollowup(rctx) {
		for _, phrase := range followupPhrases {
			if strings.Contains(lower, phrase) {
				confidence += 0.3
				break
			}
		}
		if anaphoraRef.MatchString(lower) {
			confidence += 0.2
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence <= 0.2 {
		return 0.1
	}
	return confidence
}

// isDocumentFollowup reports whether a recent assistant turn was about
// documents.
func isDocumentFollowup(rctx *RequestContext) bool {
	if rctx == nil {
		return false
	}
	history := rctx.ConversationHistory
	if len(history) > 4 {
		history = history[len(history)-4:]
	}
	for _, msg := range history {
		if msg.Role != "assistant" {
			continue
		}
		lower := strings.ToLower(msg.Content)
		for _, keyword := range documentKeywords {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
	}
	return false
}

// Process ingests any attached files, scopes retrieval to documents the
// message names, and answers from the retrieved context.
func (h *DocumentHandler) Process(ctx context.Context, message string, rctx *RequestContext) (*Response, error) {
	tenantID := rctx.Tenant()

	var newlyAdded []string
	if rctx != nil {
		for _, file := range rctx.UploadedFiles {
			if len(file.Content) == 0 {
				continue
			}
			fileType := file.Type
			if fileType == "" {
				fileType = "text/plain"
			}
			result := h.retriever.AddDocument(ctx, file.Content, file.Name, fileType, tenantID)
			if result.Success {
				newlyAdded = append(newlyAdded, file.Name)
			} else {
				h.logger.Warn("attached file was not ingested",
					zap.String("filename", file.Name),
					zap.String("reason", result.Error),
				)
			}
		}
	}

	available := h.retriever.AvailableDocuments(tenantID)
	named := extractDocumentNames(message, available)

	var (
		rag retriever.ContextResult
		err error
	)
	if len(named) > 0 {
		rag, err = h.retriever.RetrieveContextFromDocuments(ctx, message, named, tenantID, retriever.DefaultK, true)
	} else {
		rag, err = h.retriever.RetrieveContext(ctx, message, tenantID, retriever.DefaultQueryOptions())
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if rag.ChunksFound == 0 {
		return h.noContextResponse(ctx, message, rctx, tenantID)
	}

	sourceLines := make([]string, 0, len(rag.Sources))
	for _, source := range rag.Sources {
		sourceLines = append(sourceLines,
			fmt.Sprintf("- %s (Page %d, Score: %.2f)", source.Filename, source.Page, source.Score))
	}

	system := fmt.Sprintf(documentAnswerPrompt,
		rag.Context,
		strings.Join(sourceLines, "\n"),
		formatHistory(rctx),
	)
	answer, err := h.generator.Generate(ctx, system, "Question: "+message)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Response{
		Text:       answer,
		Agent:      h.Name(),
		Confidence: h.Score(message, rctx),
		Metadata: map[string]any{
			"type":             "document_qa",
			"chunks_retrieved": rag.ChunksFound,
			"sources":          rag.Sources,
			"tenant_id":        tenantID,
			"newly_added":      newlyAdded,
		},
	}, nil
}

// noContextResponse explains what to do when retrieval found nothing.
func (h *DocumentHandler) noContextResponse(ctx context.Context, message string, rctx *RequestContext, tenantID string) (*Response, error) {
	stats := h.retriever.TenantSummary(ctx, tenantID)

	text := noDocumentsResponse
	if stats.Documents > 0 {
		text = fmt.Sprintf(
			"I found %d documents in your collection, but none seem relevant to your question: %q\n\nAvailable documents: %s\n\nTry rephrasing your question or ask about topics covered in these documents.",
			stats.Documents, message, strings.Join(stats.Files, ", "))
	}

	return &Response{
		Text:       text,
		Agent:      h.Name(),
		Confidence: h.Score(message, rctx),
		Metadata: map[string]any{
			"type":             "document_qa",
			"chunks_retrieved": 0,
			"tenant_id":        tenantID,
			"documents":        stats.Documents,
		},
	}, nil
}

// formatHistory renders the last six turns for the answer prompt.
func formatHistory(rctx *RequestContext) string {
	if rctx == nil || len(rctx.ConversationHistory) == 0 {
		return "No previous conversation."
	}
	history := rctx.ConversationHistory
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == "user" {
			role = "User"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// extractDocumentNames resolves document references in the message against
// the tenant's uploads: ordinals ("second file", "last doc") and explicit
// or partial name mentions (fragments of at least 3 characters).
func extractDocumentNames(message string, available []string) []string {
	if len(available) == 0 {
		return nil
	}

	lower := strings.ToLower(message)
	var named []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			named = append(named, name)
		}
	}

	if docMentionRef.MatchString(lower) {
		for _, ref := range ordinalRefs {
			if !strings.Contains(lower, ref.word) {
				continue
			}
			if ref.index == -1 {
				add(available[len(available)-1])
			} else if ref.index < len(available) {
				add(available[ref.index])
			}
		}
	}

	for _, name := range available {
		nameLower := strings.ToLower(name)
		base := nameLower
		if dot := strings.Index(base, "."); dot != -1 {
			base = base[:dot]
		}

		if strings.Contains(lower, nameLower) || strings.Contains(lower, base) {
			add(name)
			continue
		}

		if len(base) >= 3 {
			for _, word := range strings.FieldsFunc(base, func(r rune) bool {
				return r == '_' || r == '-' || r == ' '
			}) {
				if len(word) >= 3 && strings.Contains(lower, word) {
					add(name)
					break
				}
			}
		}
	}

	return named
}
