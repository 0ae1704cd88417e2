package backend

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MsgRequestFailed = "Request failed"
	MsgMarketsFailed = "Failed to load markets"
)

// TransportError means the backend could not be reached or its response
// could not be read. Users only ever see a generic message for it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is a non-success answer from a reachable backend. Detail
// holds the server-provided message, if any.
type UpstreamError struct {
	Op     string
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Detail)
}

// Message returns the text to show a user for err: the upstream detail
// when there is one, fallback otherwise.
func Message(err error, fallback string) string {
	var up *UpstreamError
	if errors.As(err, &up) && strings.TrimSpace(up.Detail) != "" {
		return up.Detail
	}
	return fallback
}
