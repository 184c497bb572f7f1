package model

import "fmt"

// ValidationError rejects malformed input before it reaches the store. It is
// local and immediate; callers never retry it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
