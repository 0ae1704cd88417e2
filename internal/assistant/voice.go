package assistant

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"crypto-assistant/internal/observability"
	"crypto-assistant/internal/speech"
	"crypto-assistant/internal/viewmodel"
)

type VoiceState int

const (
	VoiceIdle VoiceState = iota
	VoiceListening
)

func (s VoiceState) String() string {
	if s == VoiceListening {
		return "listening"
	}
	return "idle"
}

// Asker is the part of Router a voice session drives.
type Asker interface {
	Ask(ctx context.Context, text string) (viewmodel.View, error)
}

// VoiceSession owns the speech capture of one client. It reads the
// recognizer's event stream from a single goroutine for its whole life and
// hands each final transcript to the asker.
type VoiceSession struct {
	rec          speech.Recognizer
	asker        Asker
	log          *zap.Logger
	onTranscript func(string)

	// asks run on ctx so stopping or closing the session never cancels one
	ctx  context.Context
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	state   VoiceState
	capture uint64
	closed  bool

	// set while rec.Start runs without the lock
	starting bool
	abandon  bool
	early    []speech.Event
}

type VoiceOption func(*VoiceSession)

func WithVoiceLogger(l *zap.Logger) VoiceOption {
	return func(s *VoiceSession) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOnTranscript registers fn to receive each accepted transcript before
// it is asked.
func WithOnTranscript(fn func(string)) VoiceOption {
	return func(s *VoiceSession) { s.onTranscript = fn }
}

// NewVoiceSession starts the session's event loop. A nil recognizer gives a
// session that is never available.
func NewVoiceSession(ctx context.Context, rec speech.Recognizer, asker Asker, opts ...VoiceOption) *VoiceSession {
	s := &VoiceSession{
		rec:   rec,
		asker: asker,
		log:   zap.NewNop(),
		ctx:   ctx,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if rec != nil {
		s.wg.Add(1)
		go s.loop(rec.Events())
	}
	return s
}

func (s *VoiceSession) Available() bool { return s.rec != nil }

func (s *VoiceSession) State() VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a capture. It reports false without error text when speech
// is unavailable, already listening or starting, or the recognizer refused
// to start. The recognizer is dialed without holding the session lock, so
// Stop and State stay responsive; a Stop or Close issued meanwhile cancels
// the capture as soon as it is up.
func (s *VoiceSession) Start() bool {
	if s.rec == nil {
		observability.RecordVoiceEvent("unavailable")
		return false
	}
	s.mu.Lock()
	if s.closed || s.starting || s.state == VoiceListening {
		s.mu.Unlock()
		return false
	}
	s.starting = true
	s.abandon = false
	s.mu.Unlock()

	id, err := s.rec.Start(s.ctx)

	s.mu.Lock()
	s.starting = false
	early := s.early
	s.early = nil
	abandoned := s.closed || s.abandon
	if err == nil && !abandoned {
		s.state = VoiceListening
		s.capture = id
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		observability.RecordVoiceEvent("start_failed")
		s.log.Debug("speech start failed", zap.Error(err))
		return false
	case abandoned:
		if err := s.rec.Stop(); err != nil {
			s.log.Debug("speech stop failed", zap.Error(err))
		}
		return false
	}
	observability.RecordVoiceEvent("start")
	// events that raced the commit, e.g. an immediate server error
	for _, ev := range early {
		s.handle(ev)
	}
	return true
}

// Stop ends the active capture, or cancels one still starting. Any result
// it still produces is dropped.
func (s *VoiceSession) Stop() bool {
	s.mu.Lock()
	if s.starting {
		s.abandon = true
		s.mu.Unlock()
		observability.RecordVoiceEvent("stop")
		return true
	}
	if s.state != VoiceListening {
		s.mu.Unlock()
		return false
	}
	s.state = VoiceIdle
	s.capture = 0
	s.mu.Unlock()

	observability.RecordVoiceEvent("stop")
	if err := s.rec.Stop(); err != nil {
		s.log.Debug("speech stop failed", zap.Error(err))
	}
	return true
}

// Close stops listening, ends the event loop and waits for dispatched asks
// to finish. The recognizer stays open; its owner closes it.
func (s *VoiceSession) Close() {
	s.Stop()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *VoiceSession) loop(events <-chan speech.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ev)
		}
	}
}

func (s *VoiceSession) handle(ev speech.Event) {
	if ev.Type == speech.EventResult && !ev.Final {
		return
	}
	s.mu.Lock()
	if s.starting {
		// the new capture id is unknown until Start commits it
		s.early = append(s.early, ev)
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case speech.EventResult:
		if s.state != VoiceListening || ev.Capture != s.capture {
			s.mu.Unlock()
			observability.RecordVoiceEvent("late_result")
			s.log.Debug("ignoring result of inactive capture", zap.Uint64("capture", ev.Capture))
			return
		}
		s.state = VoiceIdle
		s.capture = 0
		s.wg.Add(1)
		s.mu.Unlock()

		text := ev.Transcript()
		observability.RecordVoiceEvent("result")
		if s.onTranscript != nil {
			s.onTranscript(text)
		}
		go s.ask(text)

	case speech.EventEnd, speech.EventError:
		if s.state == VoiceListening && ev.Capture == s.capture {
			s.state = VoiceIdle
			s.capture = 0
		}
		s.mu.Unlock()
		if ev.Err != nil {
			s.log.Debug("speech capture error", zap.Error(ev.Err))
		}
	default:
		s.mu.Unlock()
	}
}

func (s *VoiceSession) ask(text string) {
	defer s.wg.Done()
	if _, err := s.asker.Ask(s.ctx, text); err != nil && !errors.Is(err, ErrEmptyQuery) {
		s.log.Debug("voice ask failed", zap.Error(err))
	}
}
