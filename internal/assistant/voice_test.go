package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/speech"
	"crypto-assistant/internal/viewmodel"
)

type fakeRecognizer struct {
	events chan speech.Event

	mu       sync.Mutex
	seq      uint64
	starts   int
	stops    int
	startErr error
	// gate, when set, holds Start until it is closed
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan speech.Event, 8)}
}

func (f *fakeRecognizer) Start(context.Context) (uint64, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.starts++
	f.seq++
	return f.seq, nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeRecognizer) Events() <-chan speech.Event { return f.events }

func (f *fakeRecognizer) Close() error {
	close(f.events)
	return nil
}

func (f *fakeRecognizer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func result(capture uint64, text string) speech.Event {
	return speech.Event{
		Capture:      capture,
		Type:         speech.EventResult,
		Final:        true,
		Alternatives: []speech.Alternative{{Transcript: text, Confidence: 0.9}, {Transcript: "other"}},
	}
}

type recordingAsker struct {
	asked chan string
}

func (a *recordingAsker) Ask(_ context.Context, text string) (viewmodel.View, error) {
	a.asked <- text
	return viewmodel.View{}, nil
}

func expectAsk(t *testing.T, a *recordingAsker) string {
	t.Helper()
	select {
	case q := <-a.asked:
		return q
	case <-time.After(3 * time.Second):
		t.Fatal("no ask dispatched")
	}
	return ""
}

func expectNoAsk(t *testing.T, a *recordingAsker) {
	t.Helper()
	select {
	case q := <-a.asked:
		t.Fatalf("unexpected ask %q", q)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVoice_Unavailable(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewVoiceSession(context.Background(), nil, &recordingAsker{asked: make(chan string, 1)})
	defer s.Close()

	assert.False(t, s.Available())
	assert.False(t, s.Start())
	assert.Equal(t, VoiceIdle, s.State())
	assert.False(t, s.Stop())
}

func TestVoice_ResultAsksAndGoesIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	asker := &recordingAsker{asked: make(chan string, 1)}
	var transcripts []string
	var tmu sync.Mutex
	s := NewVoiceSession(context.Background(), rec, asker, WithOnTranscript(func(text string) {
		tmu.Lock()
		transcripts = append(transcripts, text)
		tmu.Unlock()
	}))
	defer s.Close()

	require.True(t, s.Start())
	assert.Equal(t, VoiceListening, s.State())

	assert.False(t, s.Start(), "second start while listening is a no-op")
	starts, _ := rec.counts()
	assert.Equal(t, 1, starts)

	rec.events <- result(1, " price of bitcoin ")
	assert.Equal(t, "price of bitcoin", expectAsk(t, asker))
	assert.Eventually(t, func() bool { return s.State() == VoiceIdle }, time.Second, 5*time.Millisecond)

	tmu.Lock()
	assert.Equal(t, []string{"price of bitcoin"}, transcripts)
	tmu.Unlock()
}

func TestVoice_StopDropsLateResult(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	asker := &recordingAsker{asked: make(chan string, 2)}
	s := NewVoiceSession(context.Background(), rec, asker)
	defer s.Close()

	require.True(t, s.Start())
	require.True(t, s.Stop())
	assert.Equal(t, VoiceIdle, s.State())
	_, stops := rec.counts()
	assert.Equal(t, 1, stops)

	rec.events <- result(1, "too late")
	expectNoAsk(t, asker)

	// a result from the old capture is ignored after a new one starts
	require.True(t, s.Start())
	rec.events <- result(1, "still too late")
	expectNoAsk(t, asker)
	assert.Equal(t, VoiceListening, s.State())

	rec.events <- result(2, "eth price")
	assert.Equal(t, "eth price", expectAsk(t, asker))
}

func TestVoice_InterimResultsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	asker := &recordingAsker{asked: make(chan string, 1)}
	s := NewVoiceSession(context.Background(), rec, asker)
	defer s.Close()

	require.True(t, s.Start())
	ev := result(1, "price of")
	ev.Final = false
	rec.events <- ev
	expectNoAsk(t, asker)
	assert.Equal(t, VoiceListening, s.State())
}

func TestVoice_EndAndErrorReturnToIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	s := NewVoiceSession(context.Background(), rec, &recordingAsker{asked: make(chan string, 1)})
	defer s.Close()

	require.True(t, s.Start())
	rec.events <- speech.Event{Capture: 1, Type: speech.EventError, Err: errors.New("no-speech")}
	assert.Eventually(t, func() bool { return s.State() == VoiceIdle }, time.Second, 5*time.Millisecond)

	require.True(t, s.Start())
	rec.events <- speech.Event{Capture: 2, Type: speech.EventEnd}
	assert.Eventually(t, func() bool { return s.State() == VoiceIdle }, time.Second, 5*time.Millisecond)
}

func TestVoice_StartFailureStaysIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	rec.startErr = errors.New("microphone permission denied")
	s := NewVoiceSession(context.Background(), rec, &recordingAsker{asked: make(chan string, 1)})
	defer s.Close()

	assert.True(t, s.Available())
	assert.False(t, s.Start())
	assert.Equal(t, VoiceIdle, s.State())
}

func TestVoice_CloseWaitsForDispatchedAsk(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	release := make(chan struct{})
	finished := make(chan struct{})
	fb := &fakeBackend{answer: func(ctx context.Context, q string) (envelope.Envelope, error) {
		<-release
		defer close(finished)
		return envelope.Decode([]byte(marketsBody))
	}}
	c := NewClient(context.Background(), fb, rec, nil)

	require.True(t, c.Voice.Start())
	rec.events <- result(1, "price of bitcoin")
	require.Eventually(t, func() bool { return len(fb.calls()) == 1 }, time.Second, 5*time.Millisecond)

	// stopping after dispatch does not cancel the ask
	c.Voice.Stop()
	close(release)
	c.Close()

	select {
	case <-finished:
	default:
		t.Fatal("close returned before the ask finished")
	}
	assert.Equal(t, StateSucceeded, c.Router.Current().State)
	assert.Equal(t, "price of bitcoin", c.Router.Current().Query)
}

func TestVoice_RecognizerStreamClosed(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newFakeRecognizer()
	s := NewVoiceSession(context.Background(), rec, &recordingAsker{asked: make(chan string, 1)})
	require.NoError(t, rec.Close())
	s.Close()
}

func slowRecognizer() *fakeRecognizer {
	rec := newFakeRecognizer()
	rec.gate = make(chan struct{})
	rec.entered = make(chan struct{}, 1)
	return rec
}

func TestVoice_SlowStartDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := slowRecognizer()
	asker := &recordingAsker{asked: make(chan string, 1)}
	s := NewVoiceSession(context.Background(), rec, asker)
	defer s.Close()

	started := make(chan bool, 1)
	go func() { started <- s.Start() }()
	<-rec.entered

	stateDone := make(chan VoiceState, 1)
	go func() { stateDone <- s.State() }()
	select {
	case st := <-stateDone:
		assert.Equal(t, VoiceIdle, st)
	case <-time.After(time.Second):
		t.Fatal("State blocked behind a pending start")
	}
	assert.False(t, s.Start(), "a second start while one is pending")

	close(rec.gate)
	require.True(t, <-started)
	assert.Equal(t, VoiceListening, s.State())

	rec.events <- result(1, "price of bitcoin")
	assert.Equal(t, "price of bitcoin", expectAsk(t, asker))
}

func TestVoice_StopCancelsPendingStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := slowRecognizer()
	asker := &recordingAsker{asked: make(chan string, 1)}
	s := NewVoiceSession(context.Background(), rec, asker)
	defer s.Close()

	started := make(chan bool, 1)
	go func() { started <- s.Start() }()
	<-rec.entered

	stopped := make(chan bool, 1)
	go func() { stopped <- s.Stop() }()
	select {
	case ok := <-stopped:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked behind a pending start")
	}

	close(rec.gate)
	assert.False(t, <-started)
	assert.Equal(t, VoiceIdle, s.State())
	starts, stops := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops, "the capture is stopped once it is up")

	rec.events <- result(1, "too late")
	expectNoAsk(t, asker)
}

func TestVoice_EventDuringStartIsReplayed(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := slowRecognizer()
	asker := &recordingAsker{asked: make(chan string, 1)}
	s := NewVoiceSession(context.Background(), rec, asker)
	defer s.Close()

	started := make(chan bool, 1)
	go func() { started <- s.Start() }()
	<-rec.entered

	rec.events <- speech.Event{Capture: 1, Type: speech.EventError, Err: errors.New("no-speech")}
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.early) == 1
	}, time.Second, 5*time.Millisecond)

	close(rec.gate)
	require.True(t, <-started)
	assert.Equal(t, VoiceIdle, s.State(), "the capture ended before Start returned")
}
