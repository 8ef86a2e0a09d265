package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated  = fmt.Errorf("not authenticated")
	ErrTokenExpired      = fmt.Errorf("access token expired")
	ErrTimeout           = fmt.Errorf("operation timed out")
	ErrLoginTimeout      = fmt.Errorf("%w: login was not completed in time", ErrTimeout)
	ErrLoginCancelled    = fmt.Errorf("login cancelled")
	ErrStateMismatch     = fmt.Errorf("state parameter was not issued by this client")
	ErrUntrustedRedirect = fmt.Errorf("redirect did not come from a trusted popup")

	// Session persistence errors
	ErrPersistence       = fmt.Errorf("could not store token information")
	ErrMalformedRedirect = fmt.Errorf("%w: malformed redirect fragment", ErrPersistence)
	ErrProfileLoad       = fmt.Errorf("failed to load user profile")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RemoteAPIError describes a failed call to the catalog API.
//
// StatusCode is zero when the request never produced a response.
type RemoteAPIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RemoteAPIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%v: %s %s: status %d: %v", ErrAPIRequest, e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %s %s: status %d", ErrAPIRequest, e.Method, e.Path, e.StatusCode)
	default:
		return fmt.Sprintf("%v: %s %s: %v", ErrAPIRequest, e.Method, e.Path, e.Err)
	}
}

// Unwrap returns the underlying transport or decoding error.
func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// Is reports [ErrAPIRequest] as a match so callers can test the error kind without a type assertion.
func (e *RemoteAPIError) Is(target error) bool {
	return target == ErrAPIRequest
}

// AsRemoteAPIError extracts a [RemoteAPIError] from err's chain.
func AsRemoteAPIError(err error) (*RemoteAPIError, bool) {
	var remote *RemoteAPIError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}
