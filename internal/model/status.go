package model

import "fmt"

// Status enumerates the payment lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// transitions is the single source of truth for the lifecycle:
//
//	pending -> authorized -> captured -> refunded
//	pending -> failed
var transitions = map[Status][]Status{
	StatusPending:    {StatusAuthorized, StatusFailed},
	StatusAuthorized: {StatusCaptured},
	StatusCaptured:   {StatusRefunded},
	StatusRefunded:   {},
	StatusFailed:     {},
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseStatus converts the wire/string form into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
