package reporter

import "fmt"

// ValidationError is returned when a report is missing a required field or
// carries a value the CI server cannot accept.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// TransportError wraps any failure of the HTTP exchange itself. Post logs
// and swallows it; Deliver returns it.
type TransportError struct {
	URL     string
	Payload string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("post to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
