package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultLang             = "en-US"
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultStopGrace        = 3 * time.Second
	eventBuffer             = 16
)

type WSConfig struct {
	Endpoint         string
	Lang             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// StopGrace bounds how long a stopped capture waits for the server's
	// final result before the connection is dropped.
	StopGrace time.Duration
}

type startMessage struct {
	Type            string `json:"type"`
	Lang            string `json:"lang"`
	InterimResults  bool   `json:"interim_results"`
	MaxAlternatives int    `json:"max_alternatives"`
}

type controlMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type         string        `json:"type"`
	Final        *bool         `json:"final"`
	Alternatives []Alternative `json:"alternatives"`
	Message      string        `json:"message"`
}

// WSRecognizer streams captures to a WebSocket ASR endpoint, one
// connection per capture.
type WSRecognizer struct {
	cfg    WSConfig
	log    *zap.Logger
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	seq     uint64
	closed  bool
	readers sync.WaitGroup
}

func NewWSRecognizer(cfg WSConfig, logger *zap.Logger) *WSRecognizer {
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSRecognizer{
		cfg:    cfg,
		log:    logger,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (r *WSRecognizer) Events() <-chan Event { return r.events }

func (r *WSRecognizer) Start(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	if r.conn != nil {
		return 0, ErrBusy
	}

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, r.cfg.Endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("dial speech endpoint: %w", err)
	}
	start := startMessage{Type: "start", Lang: r.cfg.Lang, InterimResults: false, MaxAlternatives: 1}
	if err := r.writeLocked(conn, start); err != nil {
		_ = conn.Close()
		return 0, fmt.Errorf("send start: %w", err)
	}

	r.seq++
	id := r.seq
	r.conn = conn
	r.readers.Add(1)
	go r.readLoop(conn, id)
	r.log.Debug("speech capture started", zap.Uint64("capture", id))
	return id, nil
}

func (r *WSRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	// The read loop ends the capture if the server never answers the stop.
	_ = r.conn.SetReadDeadline(time.Now().Add(r.cfg.StopGrace))
	if err := r.writeLocked(r.conn, controlMessage{Type: "stop"}); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}
	return nil
}

func (r *WSRecognizer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	if r.conn != nil {
		_ = r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
		_ = r.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = r.conn.Close()
	}
	r.mu.Unlock()

	r.readers.Wait()
	close(r.events)
	return nil
}

// writeLocked serializes writes; gorilla connections allow one writer.
func (r *WSRecognizer) writeLocked(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (r *WSRecognizer) readLoop(conn *websocket.Conn, id uint64) {
	defer r.readers.Done()
	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
		_ = conn.Close()
		r.emit(Event{Capture: id, Type: EventEnd})
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				r.log.Debug("speech server did not finish after stop", zap.Uint64("capture", id))
				return
			}
			if !r.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.emit(Event{Capture: id, Type: EventError, Err: err})
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.log.Debug("ignoring malformed speech message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case "result":
			r.emit(Event{
				Capture:      id,
				Type:         EventResult,
				Final:        msg.Final == nil || *msg.Final,
				Alternatives: msg.Alternatives,
			})
		case "end":
			return
		case "error":
			r.emit(Event{Capture: id, Type: EventError, Err: errors.New(msg.Message)})
			return
		}
	}
}

func (r *WSRecognizer) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// isTimeout reports a read deadline expiry; only Stop sets one.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (r *WSRecognizer) isClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
