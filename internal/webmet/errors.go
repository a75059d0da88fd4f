package webmet

import "fmt"

// TransportError wraps a network or HTTP-level failure after retries have
// been exhausted. Callers may retry the whole operation later.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webmet: transport failure after %d attempts for %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates the archive returned a payload that does not match the
// expected schema. This is permanent for the given request and is never retried.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("webmet: unexpected payload from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
