// Package provider defines the LLM provider adapters and their shared types.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdhe/kelly-poet/pkg/conversation"
)

// maxResponseBytes caps how much of a response body is read into memory.
const maxResponseBytes = 4 << 20

// ErrMalformedResponse is returned by Extract when the body lacks the expected reply text.
var ErrMalformedResponse = errors.New("provider: malformed response")

// ErrUnknownProvider is returned by New for names it does not recognise.
var ErrUnknownProvider = errors.New("provider: unknown provider")

// Request is everything an adapter needs to build one outbound call.
type Request struct {
	Model           string
	Persona         string
	History         conversation.History // prior turns, oldest first; never includes Prompt
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
	APIKey          string
}

// RawResponse is the unparsed result of a call that reached the endpoint.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Provider is the interface that all LLM backends must implement.
type Provider interface {
	// Name returns the identifier used in configuration and metrics (e.g. "openai", "gemini").
	Name() string

	// Send performs one HTTP call. Every status code is returned in RawResponse;
	// the error is non-nil only when no response was received.
	Send(ctx context.Context, req Request) (RawResponse, error)

	// Extract pulls the reply text out of a successful response body.
	// It returns an error wrapping ErrMalformedResponse when the text is absent.
	Extract(body []byte) (string, error)
}

// Option configures an adapter.
type Option func(*httpAdapter)

// WithBaseURL points the adapter at a different API root (proxies, tests).
func WithBaseURL(u string) Option {
	return func(a *httpAdapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client used for calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *httpAdapter) { a.client = c }
}

// New returns the adapter registered under name.
func New(name string, opts ...Option) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(opts...), nil
	case "gemini":
		return NewGeminiProvider(opts...), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, name)
	}
}

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(name string) string {
	switch name {
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return "gpt-4o-mini"
	}
}

// httpAdapter holds the transport shared by every adapter.
type httpAdapter struct {
	client  *http.Client
	baseURL string
}

func newHTTPAdapter(baseURL string, opts []Option) httpAdapter {
	a := httpAdapter{client: &http.Client{}, baseURL: baseURL}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// do sends the request and reads the (bounded) body regardless of status.
func (a *httpAdapter) do(httpReq *http.Request) (RawResponse, error) {
	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return RawResponse{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return RawResponse{}, fmt.Errorf("read body: %w", err)
	}
	return RawResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// extractText reads a string at a gjson path, rejecting anything else.
func extractText(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedResponse, path)
	}
	if res.Type != gjson.String {
		return "", fmt.Errorf("%w: %s is %s, want string", ErrMalformedResponse, path, res.Type)
	}
	return res.String(), nil
}
