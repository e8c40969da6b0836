package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"linkchecker/internal/models"
)

// errTooManyRedirects is returned from CheckRedirect once the chain exceeds the cap.
var errTooManyRedirects = errors.New("stopped after too many redirects")

// UnclassifiedError carries a transport error that matched none of the known failure kinds.
type UnclassifiedError struct {
	URL string
	Err error
}

func (e *UnclassifiedError) Error() string {
	return "unclassified probe error for " + e.URL + ": " + e.Err.Error()
}

func (e *UnclassifiedError) Unwrap() error {
	return e.Err
}

// Classify maps a client error onto the failure taxonomy. The checks run in priority
// order: timeout, redirect cap, connection, invalid URL; anything else is unknown.
func Classify(err error) models.StatusCode {
	switch {
	case isTimeout(err):
		return models.StatusTimeout
	case errors.Is(err, errTooManyRedirects):
		return models.StatusTooManyRedirects
	case isConnectError(err):
		return models.StatusCannotConnect
	case isInvalidURL(err):
		return models.StatusInvalidURL
	default:
		return models.StatusUnknownError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectError(err error) bool {
	var (
		opErr      *net.OpError
		dnsErr     *net.DNSError
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.As(err, &recordErr), errors.As(err, &verifyErr):
		return true
	case errors.As(err, &authErr), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return containsAny(err.Error(), connectMessages)
}

// net/http reports these as plain errors inside the *url.Error, so match on the text.
var (
	invalidURLMessages = []string{
		"unsupported protocol scheme",
		"no Host in request URL",
		"invalid URL",
		"failed to parse Location header",
	}
	connectMessages = []string{
		"server gave HTTP response to HTTPS client",
	}
)

func isInvalidURL(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *url.Error:
			if v.Op == "parse" {
				return true
			}
		case url.EscapeError, url.InvalidHostError:
			return true
		}
	}
	return containsAny(err.Error(), invalidURLMessages)
}

func containsAny(msg string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
