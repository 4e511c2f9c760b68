package feed

import (
	"errors"

	"github.com/itsluminous/Letters/internal/backend"
)

// ErrSuperseded is returned by Refresh when a newer request or a filter
// change made its response irrelevant. The response is discarded.
var ErrSuperseded = errors.New("feed: response superseded")

// Error is the user-presentable failure of a feed operation. The raw
// backend error is logged, not carried; Unwrap yields the kind sentinel so
// callers can still classify with errors.Is.
type Error struct {
	Op      string
	Kind    backend.Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind.Sentinel() }
