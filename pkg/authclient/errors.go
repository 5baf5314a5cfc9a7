package authclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: DNS, connection, timeouts, truncated bodies
	ErrNetwork = errors.New("network error")
	// ErrRejected is matched by StatusError for any non-2xx auth service reply
	ErrRejected = errors.New("request rejected")
	// ErrInvalidResponse is returned when a 2xx body cannot be decoded or lacks required fields
	ErrInvalidResponse = errors.New("invalid response")
)

// StatusError carries a non-2xx reply from the auth service. The body is the
// server's payload, unopened.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d %s", ErrRejected, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is makes errors.Is(err, ErrRejected) hold
func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}

func isRejection(err error) bool {
	return errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidResponse)
}

// errSessionEnded signals that tokens were cleared while a request was in flight
var errSessionEnded = errors.New("session ended")
