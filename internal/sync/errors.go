package sync

import (
	"fmt"
)

// RejectedError is an authoritative rejection of a mutation (validation or
// authorization failure). The envelope stays in the queue for inspection.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("mutation rejected (%d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("mutation rejected (%d)", e.Status)
}

// TransientError is a recoverable transport failure; the mutation will be
// retried on the next replay trigger.
type TransientError struct {
	Status int
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient send failure (%d)", e.Status)
}
