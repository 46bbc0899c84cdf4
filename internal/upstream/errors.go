package upstream

import "fmt"

// Error is a failed call to the upstream API
type Error struct {
	Op         string // logical operation, e.g. "fetch_server"
	URL        string
	StatusCode int // zero when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
