package github

import (
	"errors"
	"fmt"
)

// Sentinel errors for the remote API client. Check with errors.Is();
// *RemoteError additionally supports errors.As for status inspection.
var (
	// ErrTimeout indicates the request (including retries) did not complete
	// within the configured timeout.
	ErrTimeout = errors.New("github request timed out")

	// ErrTransport indicates a network-level failure talking to the API.
	ErrTransport = errors.New("github transport failure")
)

// RemoteError is a 4xx rejection by the remote API. These are never
// retried: the request itself is wrong (bad credentials, unknown
// repository, rate limit exhaustion).
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("github rejected request: status %d: %s", e.Status, e.Body)
}
