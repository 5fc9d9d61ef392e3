package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies a sync failure for retry purposes.
type ErrorKind int

const (
	// KindTransient failures are recoverable by waiting: network errors,
	// timeouts, HTTP 5xx and 429.
	KindTransient ErrorKind = iota
	// KindPermanent failures need operator action: HTTP 4xx other than
	// 429, validation errors, and anything unrecognized (fail closed).
	KindPermanent
)

func (k ErrorKind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// StatusError carries the HTTP status of a failed catalog call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog returned status %d", e.Code)
	}
	return fmt.Sprintf("catalog returned status %d: %s", e.Code, e.Body)
}

// Classify maps an error to its retry classification. Unknown errors
// default to permanent so an unrecognized condition never retries forever.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindPermanent
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == 429:
			return KindTransient
		case statusErr.Code >= 500:
			return KindTransient
		case statusErr.Code >= 400:
			return KindPermanent
		}
		return KindPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindTransient
	}

	// http.Client wraps transport errors in *url.Error without always
	// preserving the net error chain.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") {
		return KindTransient
	}

	return KindPermanent
}

// IsNotFound reports whether err is an HTTP 404 from the catalog target.
// Deletes treat it as already satisfied.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == 404
}
