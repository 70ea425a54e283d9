package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler scores a fixed value and replies, fails, or panics on demand.
type stubHandler struct {
	name     string
	score    float64
	reply    string
	err      error
	panicMsg string
}

func (s *stubHandler) Name() string                           { return s.name }
func (s *stubHandler) Description() string                    { return "stub " + s.name }
func (s *stubHandler) Score(string, *RequestContext) float64  { return s.score }
func (s *stubHandler) Process(context.Context, string, *RequestContext) (*Response, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.reply, Agent: s.name, Confidence: s.score}, nil
}

func newStubRouter(handlers ...Handler) *Router {
	return NewRouter(handlers, &stubHandler{name: "fallback", score: 0.3, reply: "fallback reply"}, nil)
}

func TestRoute_HighestScoreWins(t *testing.T) {
	a := &stubHandler{name: "a", score: 0.6}
	b := &stubHandler{name: "b", score: 0.8}
	router := newStubRouter(a, b)

	decision := router.Route("msg", nil)
	assert.Equal(t, "b", decision.Handler.Name())
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
}

func TestRoute_FirstRegisteredWinsTies(t *testing.T) {
	a := &stubHandler{name: "a", score: 0.7}
	b := &stubHandler{name: "b", score: 0.7}
	router := newStubRouter(a, b)

	decision := router.Route("msg", nil)
	assert.Equal(t, "a", decision.Handler.Name())
}

func TestDispatch_ThresholdIsInclusive(t *testing.T) {
	router := newStubRouter(&stubHandler{name: "edge", score: 0.5, reply: "handled"})

	resp := router.Dispatch(context.Background(), "msg", nil)
	assert.Equal(t, "edge", resp.Agent)
	assert.Equal(t, "handled", resp.Text)
}

func TestDispatch_BelowThresholdFallsBack(t *testing.T) {
	router := newStubRouter(&stubHandler{name: "weak", score: 0.49, reply: "nope"})

	resp := router.Dispatch(context.Background(), "msg", nil)
	assert.Equal(t, "fallback", resp.Agent)
	assert.Equal(t, "fallback reply", resp.Text)
}

func TestDispatch_NoHandlersFallsBack(t *testing.T) {
	router := newStubRouter()

	resp := router.Dispatch(context.Background(), "msg", nil)
	assert.Equal(t, "fallback", resp.Agent)
}

func TestDispatch_HandlerErrorIsContained(t *testing.T) {
	router := newStubRouter(&stubHandler{name: "broken", score: 0.9, err: errors.New("boom")})

	resp := router.Dispatch(context.Background(), "msg", nil)
	require.NotNil(t, resp)
	assert.Equal(t, "broken", resp.Agent)
	assert.Contains(t, resp.Text, "boom")
	assert.Equal(t, "boom", resp.Err)
	assert.Zero(t, resp.Confidence)
}

func TestDispatch_HandlerPanicIsContained(t *testing.T) {
	router := newStubRouter(&stubHandler{name: "panicky", score: 0.9, panicMsg: "unexpected state"})

	resp := router.Dispatch(context.Background(), "msg", nil)
	require.NotNil(t, resp)
	assert.Equal(t, "panicky", resp.Agent)
	assert.Contains(t, resp.Text, "unexpected state")
	assert.Contains(t, resp.Err, "panic")
}

func TestDisabledRouter(t *testing.T) {
	router := NewDisabledRouter(nil)

	resp := router.Dispatch(context.Background(), "msg", nil)
	assert.Equal(t, "system", resp.Agent)
	assert.Contains(t, resp.Text, "not initialized")
	assert.Empty(t, router.Handlers())
}

func TestHandlers_RegistrationOrder(t *testing.T) {
	router := newStubRouter(
		&stubHandler{name: "first", score: 0.1},
		&stubHandler{name: "second", score: 0.1},
	)

	infos := router.Handlers()
	require.Len(t, infos, 2)
	assert.Equal(t, "first", infos[0].Name)
	assert.Equal(t, "second", infos[1].Name)
	assert.NotEmpty(t, infos[0].Description)
}
