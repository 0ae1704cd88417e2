package assistant

import (
	"context"

	"crypto-assistant/internal/speech"
)

// Client bundles the router and the single voice session of one user.
type Client struct {
	Router *Router
	Voice  *VoiceSession
}

// NewClient wires a voice session to a new router. rec may be nil.
func NewClient(ctx context.Context, b Backend, rec speech.Recognizer, ropts []RouterOption, vopts ...VoiceOption) *Client {
	r := NewRouter(b, ropts...)
	return &Client{
		Router: r,
		Voice:  NewVoiceSession(ctx, rec, r, vopts...),
	}
}

func (c *Client) Close() {
	c.Voice.Close()
}
