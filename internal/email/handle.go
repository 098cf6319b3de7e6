package email

import "github.com/sungwon/email-gateway/internal/acs"

// Handle is the opaque messageId returned by Send. Only the provider
// client interprets its contents; here it is compared and passed along.
type Handle string

// Equal reports whether h and other are the same handle.
func (h Handle) Equal(other Handle) bool { return h == other }

// IsZero reports whether h is empty.
func (h Handle) IsZero() bool { return h == "" }

func (h Handle) String() string { return string(h) }

// Status is the caller-facing delivery status.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCanceled  Status = "Canceled"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// StatusResult is the outcome of resolving a Handle. It is computed fresh
// on every query.
type StatusResult struct {
	ID     string           `json:"id"`
	Status Status           `json:"status"`
	Error  *acs.ErrorDetail `json:"error,omitempty"`
}

// statusFromState maps a provider operation state onto a Status.
func statusFromState(state acs.OperationState) (Status, bool) {
	switch state {
	case acs.StateNotStarted, acs.StateRunning:
		return StatusQueued, true
	case acs.StateSucceeded:
		return StatusSucceeded, true
	case acs.StateFailed:
		return StatusFailed, true
	case acs.StateCanceled:
		return StatusCanceled, true
	}
	return "", false
}
