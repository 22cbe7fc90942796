package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
)

// ErrorKind categorizes a failure returned by a Client or Session.
type ErrorKind string

const (
	KindUnsupportedScheme ErrorKind = "unsupported_scheme"
	KindConnection        ErrorKind = "connection"
	KindTimeout           ErrorKind = "timeout"
	KindProtocol          ErrorKind = "protocol"
	KindParse             ErrorKind = "parse"
	KindSessionClosed     ErrorKind = "session_closed"
)

// Sentinel errors for use with errors.Is. Each matches any *Error of the
// same kind.
var (
	ErrUnsupportedScheme = &Error{Kind: KindUnsupportedScheme}
	ErrConnection        = &Error{Kind: KindConnection}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrProtocol          = &Error{Kind: KindProtocol}
	ErrParse             = &Error{Kind: KindParse}
	ErrSessionClosed     = &Error{Kind: KindSessionClosed}
)

// Error is returned by every failing send. Kind tells the caller what went
// wrong; Err holds the underlying cause when there is one.
//
// Example:
//
//	resp, err := client.Get(ctx, url, nil)
//	if errors.Is(err, http.ErrTimeout) {
//	    // caller decides whether to try again
//	}
type Error struct {
	Kind ErrorKind
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("hitreq: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	b.WriteString(kindMessages[e.Kind])
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so the sentinel
// values above match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Err == nil || errors.Is(e.Err, t.Err))
}

var kindMessages = map[ErrorKind]string{
	KindUnsupportedScheme: "unsupported URL",
	KindConnection:        "connection failed",
	KindTimeout:           "request timed out",
	KindProtocol:          "malformed response",
	KindParse:             "invalid JSON body",
	KindSessionClosed:     "session is closed",
}

// KindOf returns the kind of err, or "" if err did not come from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout reports whether err is a timeout failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// classify maps an error from net/http into the package taxonomy. op is
// "send" while waiting for the status line and headers, "read" while
// reading the body.
func classify(op, rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	wrap := func(kind ErrorKind) error {
		return &Error{Kind: kind, Op: op, URL: rawURL, Err: unwrapURLError(err)}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return wrap(KindTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(KindTimeout)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return wrap(KindConnection)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return wrap(KindConnection)
	}
	if errors.Is(err, context.Canceled) {
		return wrap(KindConnection)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return wrap(KindProtocol)
	}
	msg := err.Error()
	if strings.Contains(msg, "malformed") || strings.Contains(msg, "chunk") ||
		strings.Contains(msg, "server sent") || strings.Contains(msg, "bad Content-Length") {
		return wrap(KindProtocol)
	}

	if op == "read" {
		return wrap(KindProtocol)
	}
	return wrap(KindConnection)
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func schemeError(rawURL, format string, args ...any) error {
	return &Error{
		Kind: KindUnsupportedScheme,
		Op:   "validate",
		URL:  rawURL,
		Err:  fmt.Errorf(format, args...),
	}
}
