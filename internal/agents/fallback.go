package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// fallbackConfidence is the fixed confidence reported by the general
// fallback handler.
const fallbackConfidence = 0.3

const fallbackPrompt = "You are a helpful assistant. The user's query could not be handled by any " +
	"specialized agent, so provide a general response. Be helpful and suggest how they might " +
	"rephrase their question or what information they might need to provide."

// FallbackHandler serves messages no specialized handler claimed. Its own
// generation failure becomes an error-shaped Response, never an error.
type FallbackHandler struct {
	generator Generator
	logger    *zap.Logger
}

// NewFallbackHandler creates the general-purpose fallback.
func NewFallbackHandler(generator Generator, logger *zap.Logger) *FallbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackHandler{generator: generator, logger: logger}
}

func (h *FallbackHandler) Name() string { return "general-assistant" }

func (h *FallbackHandler) Description() string {
	return "General responses when no specialized handler applies"
}

func (h *FallbackHandler) Score(string, *RequestContext) float64 {
	return fallbackConfidence
}

func (h *FallbackHandler) Process(ctx context.Context, message string, _ *RequestContext) (*Response, error) {
	answer, err := h.generator.Generate(ctx, fallbackPrompt, message)
	if err != nil {
		h.logger.Warn("fallback generation failed", zap.Error(err))
		return &Response{
			Text:  fmt.Sprintf("I apologize, but I encountered an error processing your request: %v", err),
			Agent: h.Name(),
			Err:   err.Error(),
		}, nil
	}

	return &Response{
		Text:       answer,
		Agent:      h.Name(),
		Confidence: fallbackConfidence,
		Metadata: map[string]any{
			"type":   "fallback",
			"reason": "no specialized handler had sufficient confidence",
		},
	}, nil
}
