// Package assistant turns user queries, typed or spoken, into render-ready
// views.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/observability"
	"crypto-assistant/internal/viewmodel"
)

var ErrEmptyQuery = errors.New("query is empty")

type State int

const (
	StateIdle State = iota
	StateSending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Backend answers one query with one envelope.
type Backend interface {
	Ask(ctx context.Context, query string) (envelope.Envelope, error)
}

// Narrator writes a short brief for a token view.
type Narrator interface {
	Brief(ctx context.Context, tv viewmodel.TokenView) (string, error)
}

// AskError is a failed ask. Message is what the user should see.
type AskError struct {
	Message string
	Err     error
}

func (e *AskError) Error() string { return e.Message }

func (e *AskError) Unwrap() error { return e.Err }

type Snapshot struct {
	State     State
	Query     string
	View      *viewmodel.View
	Err       string
	RequestID string
}

// Router sends queries to the backend and keeps the snapshot of the most
// recently issued one.
type Router struct {
	backend  Backend
	narrator Narrator
	log      *zap.Logger
	onUpdate func(Snapshot)

	mu     sync.Mutex
	snap   Snapshot
	issued uint64
}

type RouterOption func(*Router)

func WithNarrator(n Narrator) RouterOption {
	return func(r *Router) { r.narrator = n }
}

func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithOnUpdate registers fn to receive every snapshot change. It is called
// outside the router lock.
func WithOnUpdate(fn func(Snapshot)) RouterOption {
	return func(r *Router) { r.onUpdate = fn }
}

func NewRouter(b Backend, opts ...RouterOption) *Router {
	r := &Router{backend: b, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Reset drops a finished result and returns to idle. An ask in flight is
// left alone.
func (r *Router) Reset() {
	r.mu.Lock()
	if r.snap.State == StateSending {
		r.mu.Unlock()
		return
	}
	r.snap = Snapshot{}
	r.mu.Unlock()
	r.notify(Snapshot{})
}

// Ask sends text verbatim and returns the resulting view. Overlapping asks
// all run to completion; each caller gets its own answer, but only the
// latest issued ask may update the snapshot.
func (r *Router) Ask(ctx context.Context, text string) (viewmodel.View, error) {
	if strings.TrimSpace(text) == "" {
		observability.RecordAsk("empty", -1)
		return viewmodel.View{}, ErrEmptyQuery
	}

	reqID := uuid.NewString()
	log := r.log.With(zap.String("request_id", reqID))

	r.mu.Lock()
	r.issued++
	gen := r.issued
	r.snap = Snapshot{State: StateSending, Query: text, RequestID: reqID}
	sending := r.snap
	r.mu.Unlock()
	r.notify(sending)

	start := time.Now()
	env, err := r.backend.Ask(backend.WithRequestID(ctx, reqID), text)
	if err == nil {
		observability.RecordEnvelopeKind(string(env.Kind))
		if env.Kind == envelope.KindError {
			err = &backend.UpstreamError{Op: "ask", Status: 200, Detail: env.Error}
		}
	}
	if err != nil {
		msg := backend.Message(err, backend.MsgRequestFailed)
		observability.RecordAsk("failed", time.Since(start).Seconds())
		log.Warn("ask failed", zap.Error(err))
		r.finish(gen, Snapshot{State: StateFailed, Query: text, Err: msg, RequestID: reqID}, log)
		return viewmodel.View{}, &AskError{Message: msg, Err: err}
	}

	view := viewmodel.Render(env)
	if view.Kind == envelope.KindUnknown {
		log.Debug("ignoring response with unknown kind", zap.String("kind", env.RawKind))
		observability.RecordAsk("ignored", time.Since(start).Seconds())
	} else {
		observability.RecordAsk("succeeded", time.Since(start).Seconds())
	}
	if view.TokenFull != nil {
		observability.RecordExtraction("founders", len(view.TokenFull.Founders) > 0)
		observability.RecordExtraction("funding", !view.TokenFull.Funding.Empty())
		r.decorate(ctx, view.TokenFull, log)
	}

	r.finish(gen, Snapshot{State: StateSucceeded, Query: text, View: &view, RequestID: reqID}, log)
	return view, nil
}

func (r *Router) decorate(ctx context.Context, tv *viewmodel.TokenView, log *zap.Logger) {
	if r.narrator == nil {
		return
	}
	brief, err := r.narrator.Brief(ctx, *tv)
	if err != nil {
		log.Debug("narrator brief failed", zap.Error(err))
		return
	}
	tv.Brief = brief
}

func (r *Router) finish(gen uint64, snap Snapshot, log *zap.Logger) {
	r.mu.Lock()
	if gen != r.issued {
		r.mu.Unlock()
		observability.RecordStaleAnswer()
		log.Debug("newer ask issued, dropping stale answer")
		return
	}
	r.snap = snap
	r.mu.Unlock()
	r.notify(snap)
}

func (r *Router) notify(s Snapshot) {
	if r.onUpdate != nil {
		r.onUpdate(s)
	}
}
