package embeddings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/embeddings"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     embeddings.Config
		wantErr bool
	}{
		{"valid", embeddings.Config{BaseURL: "http://localhost:8080/v1", Model: "BAAI/bge-small-en-v1.5"}, false},
		{"missing base url", embeddings.Config{Model: "m"}, true},
		{"missing model", embeddings.Config{BaseURL: "http://localhost:8080/v1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("EMBEDDING_BASE_URL", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := embeddings.ConfigFromEnv()
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Model)
	assert.Empty(t, cfg.APIKey)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := embeddings.ConfigFromEnv()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
}

func TestNewService_AppliesDefaults(t *testing.T) {
	service, err := embeddings.NewService(embeddings.Config{})
	require.NoError(t, err)
	require.NotNil(t, service)
	require.NotNil(t, service.Embedder())
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	service, err := embeddings.NewService(embeddings.Config{})
	require.NoError(t, err)

	_, err = service.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)
}

func TestEmbedQuery_EmptyInput(t *testing.T) {
	service, err := embeddings.NewService(embeddings.Config{})
	require.NoError(t, err)

	_, err = service.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, embeddings.ErrEmptyInput)
}
