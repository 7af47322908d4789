package dataapi

import "fmt"

// Kind classifies a transport failure so the loop can log the stage that
// broke without string matching.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindStatus
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindBody:
		return "body"
	default:
		return "unknown"
	}
}

// TransportError wraps any fetch failure. An empty result set is never
// represented as a TransportError.
type TransportError struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("dataapi %s: %s (%d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("dataapi %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
