package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// dispatchThreshold is the minimum confidence required to dispatch to a
// specialized handler. A score of exactly 0.5 dispatches.
const dispatchThreshold = 0.5

const notInitializedResponse = "The assistant is not initialized. Check the language model configuration and restart."

// Decision is the outcome of routing one message.
type Decision struct {
	Handler    Handler
	Confidence float64
}

// Router scores registered handlers and dispatches messages to the winner.
type Router struct {
	handlers []Handler
	fallback Handler
	logger   *zap.Logger
	disabled bool
}

// NewRouter creates a router over the handlers in registration order. Ties
// go to the earlier registration.
func NewRouter(handlers []Handler, fallback Handler, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{handlers: handlers, fallback: fallback, logger: logger}
}

// NewDisabledRouter creates a router whose every dispatch reports that the
// system is not initialized. Used when the LLM client could not be built at
// startup.
func NewDisabledRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("router running in disabled mode")
	return &Router{logger: logger, disabled: true}
}

// Route returns the highest-scoring handler. The first registered handler
// wins ties because only a strictly greater score displaces the leader.
func (r *Router) Route(message string, rctx *RequestContext) Decision {
	var best Decision
	for _, handler := range r.handlers {
		score := handler.Score(message, rctx)
		if score > best.Confidence {
			best = Decision{Handler: handler, Confidence: score}
		}
	}
	return best
}

// Dispatch routes the message and runs the winning handler, falling back
// when no handler clears the confidence threshold. Handler errors and
// panics are contained into error-shaped responses; Dispatch never fails.
func (r *Router) Dispatch(ctx context.Context, message string, rctx *RequestContext) *Response {
	if r.disabled {
		return &Response{Text: notInitializedResponse, Agent: "system"}
	}

	decision := r.Route(message, rctx)
	if decision.Handler == nil || decision.Confidence < dispatchThreshold {
		r.logger.Debug("dispatching to fallback",
			zap.Float64("confidence", decision.Confidence),
		)
		return r.run(ctx, r.fallback, message, rctx)
	}

	r.logger.Debug("dispatching to handler",
		zap.String("handler", decision.Handler.Name()),
		zap.Float64("confidence", decision.Confidence),
	)
	return r.run(ctx, decision.Handler, message, rctx)
}

// run executes one handler, converting errors and panics into responses.
func (r *Router) run(ctx context.Context, handler Handler, message string, rctx *RequestContext) (resp *Response) {
	if handler == nil {
		return &Response{Text: "No suitable handler found to process this request.", Agent: "system"}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked",
				zap.String("handler", handler.Name()),
				zap.Any("panic", rec),
			)
			resp = &Response{
				Text:  fmt.Sprintf("Handler processing error: %v", rec),
				Agent: handler.Name(),
				Err:   fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	resp, err := handler.Process(ctx, message, rctx)
	if err != nil {
		r.logger.Warn("handler failed",
			zap.String("handler", handler.Name()),
			zap.Error(err),
		)
		return &Response{
			Text:  fmt.Sprintf("Handler processing error: %v", err),
			Agent: handler.Name(),
			Err:   err.Error(),
		}
	}
	if resp == nil {
		return &Response{Agent: handler.Name()}
	}
	return resp
}

// Handlers lists the registered handlers in registration order.
func (r *Router) Handlers() []HandlerInfo {
	infos := make([]HandlerInfo, 0, len(r.handlers))
	for _, handler := range r.handlers {
		infos = append(infos, HandlerInfo{Name: handler.Name(), Description: handler.Description()})
	}
	return infos
}
