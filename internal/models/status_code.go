package models

import "strconv"

// StatusCode is either an HTTP status code or one of the synthetic failure codes below.
// Synthetic codes are negative so they never collide with HTTP codes.
type StatusCode int

const (
	StatusTimeout          StatusCode = -1
	StatusTooManyRedirects StatusCode = -2
	StatusUnknownError     StatusCode = -3
	StatusCannotConnect    StatusCode = -4
	StatusInvalidURL       StatusCode = -5
)

// IsHTTP reports whether the code came from an actual HTTP response.
func (c StatusCode) IsHTTP() bool {
	return c > 0
}

// String returns the HTTP code as digits, or the failure name for synthetic codes.
func (c StatusCode) String() string {
	switch c {
	case StatusTimeout:
		return "timeout"
	case StatusTooManyRedirects:
		return "too_many_redirects"
	case StatusUnknownError:
		return "unknown_error"
	case StatusCannotConnect:
		return "cannot_connect"
	case StatusInvalidURL:
		return "invalid_url"
	default:
		return strconv.Itoa(int(c))
	}
}
