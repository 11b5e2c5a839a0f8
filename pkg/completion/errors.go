package completion

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind classifies why a completion failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindMissingCredential
	KindMalformedResponse
	KindTransport
	KindProtocol
	KindRetriesExhausted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindMissingCredential:
		return "missing_credential"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTransport:
		return "transport_error"
	case KindProtocol:
		return "protocol_error"
	case KindRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *Error unwraps to the one matching its Kind.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrMissingCredential = errors.New("missing credential")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTransport         = errors.New("transport error")
	ErrProtocol          = errors.New("protocol error")
	ErrRetriesExhausted  = errors.New("retries exhausted")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindMissingCredential:
		return ErrMissingCredential
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindTransport:
		return ErrTransport
	case KindProtocol:
		return ErrProtocol
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	default:
		return nil
	}
}

// Error is the only error type Complete returns.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int    // last HTTP status seen, 0 if none
	Body       string // leading bytes of the last response body
	Attempts   int    // sends performed
	Err        error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("completion: ")
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("failed")
	}

	switch e.Kind {
	case KindProtocol:
		fmt.Fprintf(&b, ": %s returned status %d", e.Provider, e.StatusCode)
	case KindRetriesExhausted:
		fmt.Fprintf(&b, ": %s throttled all %d attempts (last status %d)", e.Provider, e.Attempts, e.StatusCode)
	default:
		if e.Provider != "" && e.Kind != KindInvalidRequest {
			fmt.Fprintf(&b, " (%s)", e.Provider)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of a completion error, or KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

const snippetLimit = 512

// snippet returns at most snippetLimit bytes of body as valid UTF-8.
func snippet(body []byte) string {
	if len(body) > snippetLimit {
		body = body[:snippetLimit]
	}
	s := strings.TrimSpace(string(body))
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}
