package apify

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the client is used without an API key.
var ErrNotConfigured = errors.New("apify client is not configured")

// RemoteError wraps a non-success response from the Apify API.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("apify API returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("apify API returned status %d", e.StatusCode)
}

// PollTimeoutError is returned when a run does not reach a terminal
// status within the configured attempt budget.
type PollTimeoutError struct {
	RunID    string
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("run %s did not finish after %d poll attempts", e.RunID, e.Attempts)
}

// RunFailedError is returned when a run finishes in a terminal status
// other than SUCCEEDED.
type RunFailedError struct {
	RunID  string
	Status string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s finished with status %s", e.RunID, e.Status)
}
