package agents

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

type hashEmbedder struct{}

func (hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embedText(text)
	}
	return out, nil
}

func (hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func embedText(text string) []float32 {
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	v := make([]float32, 8)
	var sumSq float64
	for i := range v {
		v[i] = float32((hash+i*7)%100 + 1)
		sumSq += float64(v[i]) * float64(v[i])
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func newRetriever(t *testing.T) *retriever.Service {
	t.Helper()
	store, err := vectorstore.NewStore(vectorstore.Config{Path: t.TempDir()}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	tenants, err := tenant.NewManager(tenant.Config{Path: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	svc, err := retriever.NewService(chunker.New(), store, tenants, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestDocumentHandler_Score(t *testing.T) {
	h := NewDocumentHandler(newRetriever(t), &fakeGenerator{}, nil)

	tests := []struct {
		name    string
		message string
		rctx    *RequestContext
		want    float64
	}{
		{
			name:    "uploaded files dominate",
			message: "hi",
			rctx:    &RequestContext{UploadedFiles: []UploadedFile{{Name: "a.txt"}}},
			want:    0.9,
		},
		{
			name:    "multiple keywords accumulate",
			message: "summarize the findings of the research document",
			want:    0.8, // capped
		},
		{
			name:    "explicit reference adds boost",
			message: "what does the document say",
			// "document" + "doc" substrings = 0.4, +0.1 phrase, +0.2 regex
			want: 0.7,
		},
		{
			name:    "no signal floors at 0.1",
			message: "hello there",
			want:    0.1,
		},
		{
			name:    "single keyword is below floor threshold",
			message: "view pdf now",
			want:    0.1, // 0.2 is not strictly above the floor cutoff
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, h.Score(tt.message, tt.rctx), 1e-9)
		})
	}
}

func TestDocumentHandler_Score_FollowupBoosts(t *testing.T) {
	h := NewDocumentHandler(newRetriever(t), &fakeGenerator{}, nil)

	rctx := &RequestContext{
		ConversationHistory: []Message{
			{Role: "user", Content: "what is in the report?"},
			{Role: "assistant", Content: "The document covers quarterly revenue."},
		},
	}

	// "tell me more" after a document answer: 0.3 follow-up boost plus 0.1
	// for "tell me", floor otherwise.
	withHistory := h.Score("tell me more", rctx)
	withoutHistory := h.Score("tell me more", nil)
	assert.Greater(t, withHistory, withoutHistory)

	// Bare anaphora after a document answer also gets a boost.
	anaphora := h.Score("can you explain what that means", rctx)
	assert.Greater(t, anaphora, h.Score("can you explain what maybe means", nil))
}

func TestExtractDocumentNames(t *testing.T) {
	available := []string{"budget_report.pdf", "notes.txt", "summary.docx"}

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"ordinal first", "summarize the first doc", []string{"budget_report.pdf"}},
		{"ordinal last", "what is in the last file", []string{"summary.docx"}},
		{"explicit name", "open notes.txt for me", []string{"notes.txt"}},
		{"base name", "what does summary say", []string{"summary.docx"}},
		{"name fragment", "anything about the budget?", []string{"budget_report.pdf"}},
		{"ordinal without doc word", "the first thing to do", nil},
		{"no reference", "hello there", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDocumentNames(tt.message, available))
		})
	}

	assert.Nil(t, extractDocumentNames("first doc", nil))
}

func TestDocumentHandler_Process_AnswersFromContext(t *testing.T) {
	svc := newRetriever(t)
	ctx := context.Background()

	result := svc.AddDocument(ctx, []byte("The quarterly revenue grew by 12 percent."),
		"revenue.txt", chunker.MIMEText, "acme")
	require.True(t, result.Success)

	gen := &fakeGenerator{reply: "Revenue grew 12 percent."}
	h := NewDocumentHandler(svc, gen, nil)

	resp, err := h.Process(ctx, "what happened to quarterly revenue?", &RequestContext{TenantID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12 percent.", resp.Text)
	assert.Equal(t, "document-qa", resp.Agent)
	assert.Equal(t, "acme", resp.Metadata["tenant_id"])
	assert.Greater(t, resp.Metadata["chunks_retrieved"], 0)
	assert.Contains(t, gen.lastSystem, "[Source 1: revenue.txt]")
	assert.Contains(t, gen.lastPrompt, "what happened to quarterly revenue?")
}

func TestDocumentHandler_Process_IngestsUploadedFiles(t *testing.T) {
	svc := newRetriever(t)
	gen := &fakeGenerator{reply: "ok"}
	h := NewDocumentHandler(svc, gen, nil)

	rctx := &RequestContext{
		TenantID: "acme",
		UploadedFiles: []UploadedFile{
			{Name: "handbook.txt", Type: chunker.MIMEText, Content: []byte("Employees get 25 vacation days.")},
		},
	}

	resp, err := h.Process(context.Background(), "how many vacation days?", rctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"handbook.txt"}, resp.Metadata["newly_added"])
	assert.Equal(t, []string{"handbook.txt"}, svc.AvailableDocuments("acme"))
}

func TestDocumentHandler_Process_NoDocumentsGuidance(t *testing.T) {
	h := NewDocumentHandler(newRetriever(t), &fakeGenerator{reply: "should not be called"}, nil)

	resp, err := h.Process(context.Background(), "summarize the report", &RequestContext{TenantID: "empty"})
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "Upload your documents")
	assert.Equal(t, 0, resp.Metadata["chunks_retrieved"])
}
