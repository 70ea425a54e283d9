// Package agents routes chat messages to specialized handlers.
//
// Each handler scores how confidently it can serve a message; the router
// dispatches to the best scorer and falls back to a general handler when no
// score clears the confidence threshold. Handlers answer through a chat
// Generator and never let their own failures escape as errors: every
// dispatch produces a Response.
package agents

import "context"

// Generator produces a chat completion for a system/user prompt pair.
// Satisfied by the llm client; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Handler is one specialized message processor.
type Handler interface {
	// Name identifies the handler in responses and listings.
	Name() string
	// Description is a one-line summary for listings.
	Description() string
	// Score reports confidence in [0, 1] that this handler should serve
	// the message.
	Score(message string, rctx *RequestContext) float64
	// Process serves the message.
	Process(ctx context.Context, message string, rctx *RequestContext) (*Response, error)
}

// UploadedFile is a file attached to the current message.
type UploadedFile struct {
	Name    string
	Type    string
	Size    int64
	Content []byte
}

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// RequestContext carries per-request state into scoring and processing.
type RequestContext struct {
	TenantID            string
	UploadedFiles       []UploadedFile
	ConversationHistory []Message
}

// Tenant returns the request's tenant ID, defaulting when unset.
func (r *RequestContext) Tenant() string {
	if r == nil || r.TenantID == "" {
		return "default"
	}
	return r.TenantID
}

// Response is the outcome of a dispatch. Err is set instead of returning an
// error so a failed handler still yields a presentable response.
type Response struct {
	Text       string         `json:"response"`
	Agent      string         `json:"agent"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
