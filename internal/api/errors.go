package api

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the backend answers with a non-2xx status
// and no cached body can stand in for it.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("posts API returned %s", e.Status)
}

// Unauthorized reports an authentication or authorization failure.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// DecodeError describes a malformed posts payload. Index is -1 when the
// envelope itself is broken.
type DecodeError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Index < 0 && e.Err != nil:
		return fmt.Sprintf("decode posts: %s: %v", e.Reason, e.Err)
	case e.Index < 0:
		return "decode posts: " + e.Reason
	case e.Err != nil:
		return fmt.Sprintf("decode posts: item %d: %s: %s: %v", e.Index, e.Field, e.Reason, e.Err)
	default:
		return fmt.Sprintf("decode posts: item %d: %s: %s", e.Index, e.Field, e.Reason)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
