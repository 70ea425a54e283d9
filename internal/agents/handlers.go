package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// regexBoost awards a score when the pattern matches and no keyword tier
// already did.
type regexBoost struct {
	pattern *regexp.Regexp
	score   float64
}

// keywordHandler scores by tiered keyword lists and answers with a single
// LLM call under a fixed system role. The api, form, and analytics handlers
// are all instances of it.
type keywordHandler struct {
	name         string
	description  string
	responseType string
	system       string
	high         []string
	medium       []string
	boosts       []regexBoost
	extra        map[string]any
	generator    Generator
	logger       *zap.Logger
}

func (h *keywordHandler) Name() string        { return h.name }
func (h *keywordHandler) Description() string { return h.description }

// Score returns 0.9 on a high-tier keyword, 0.6 on a medium-tier one, the
// first matching regex boost otherwise, and 0.1 when nothing matches.
func (h *keywordHandler) Score(message string, _ *RequestContext) float64 {
	lower := strings.ToLower(message)

	for _, keyword := range h.high {
		if strings.Contains(lower, keyword) {
			return 0.9
		}
	}
	for _, keyword := range h.medium {
		if strings.Contains(lower, keyword) {
			return 0.6
		}
	}
	for _, boost := range h.boosts {
		if boost.pattern.MatchString(lower) {
			return boost.score
		}
	}
	return 0.1
}

func (h *keywordHandler) Process(ctx context.Context, message string, rctx *RequestContext) (*Response, error) {
	answer, err := h.generator.Generate(ctx, h.system, message)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	metadata := map[string]any{"type": h.responseType}
	for k, v := range h.extra {
		metadata[k] = v
	}

	return &Response{
		Text:       answer,
		Agent:      h.name,
		Confidence: h.Score(message, rctx),
		Metadata:   metadata,
	}, nil
}

// NewAPIHandler answers questions about calling and integrating APIs.
func NewAPIHandler(generator Generator, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &keywordHandler{
		name:         "api-execution",
		description:  "Helps with API calls, endpoints, and integrations",
		responseType: "api_execution",
		system: "You are an API execution assistant. Help users make API calls, explain endpoints, " +
			"format requests and responses, and handle authentication and errors. " +
			"If credentials are needed, explain how to obtain them securely.",
		high: []string{
			"api", "endpoint", "rest", "graphql", "webhook", "http request",
			"post request", "get request", "put request", "delete request",
			"api call", "integration", "third party", "external service",
		},
		medium: []string{
			"service", "request", "response", "authentication", "auth",
			"token", "key", "connect", "fetch data", "send data",
		},
		boosts: []regexBoost{
			{regexp.MustCompile(`https?://`), 0.8},
			{regexp.MustCompile(`\b(json|xml|curl|postman)\b`), 0.7},
		},
		extra:     map[string]any{"requires_external_calls": true},
		generator: generator,
		logger:    logger,
	}
}

// NewFormHandler generates form schemas and validation rules.
func NewFormHandler(generator Generator, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &keywordHandler{
		name:         "form-generation",
		description:  "Generates forms, fields, and validation schemas",
		responseType: "form_generation",
		system: "You are a form generation assistant. Design form schemas with appropriate fields, " +
			"input types, and validation rules for the user's described use case.",
		high: []string{
			"form", "create form", "generate form", "form builder", "input field",
			"form validation", "form schema", "contact form", "registration form",
			"survey form", "feedback form",
		},
		medium: []string{
			"field", "input", "validation", "schema", "template", "layout",
			"checkbox", "radio button", "dropdown", "text field", "submit",
		},
		boosts: []regexBoost{
			{regexp.MustCompile(`\b(html|css|javascript|react|vue|angular)\b`), 0.7},
		},
		generator: generator,
		logger:    logger,
	}
}

// NewAnalyticsHandler explains and performs data analysis tasks.
func NewAnalyticsHandler(generator Generator, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &keywordHandler{
		name:         "analytics",
		description:  "Analyzes data, metrics, trends, and statistics",
		responseType: "analytics",
		system: "You are a data analytics assistant. Help users analyze data, compute statistics, " +
			"interpret trends, and design reports and visualizations.",
		high: []string{
			"analytics", "analysis", "analyze", "data analysis", "statistics",
			"report", "dashboard", "chart", "graph", "visualization", "metrics",
			"kpi", "performance", "trend", "pattern",
		},
		medium: []string{
			"data", "numbers", "calculate", "measure", "compare", "insight",
			"summary", "overview", "breakdown", "distribution", "correlation",
		},
		boosts: []regexBoost{
			{regexp.MustCompile(`\b(sql|python|r|excel|tableau|powerbi)\b`), 0.7},
			{regexp.MustCompile(`\b(average|mean|median|sum|count|percentage)\b`), 0.8},
		},
		generator: generator,
		logger:    logger,
	}
}
