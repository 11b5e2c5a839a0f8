// Package completion turns a persona, a conversation history and a new user
// utterance into exactly one assistant reply, retrying throttled calls with
// exponential backoff.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdhe/kelly-poet/pkg/conversation"
	"github.com/abdhe/kelly-poet/pkg/metrics"
	"github.com/abdhe/kelly-poet/pkg/provider"
	"github.com/abdhe/kelly-poet/pkg/resilience"
	"github.com/abdhe/kelly-poet/pkg/secrets"
)

// Config holds the tunables of a completion call.
type Config struct {
	Model             string
	Temperature       float64
	MaxOutputTokens   int
	MaxRetries        int           // total send attempts, >= 1
	InitialDelay      time.Duration // wait after the first throttled attempt
	BackoffMultiplier float64       // > 1
	RequestTimeout    time.Duration // wall-clock bound across all attempts; 0 disables
}

// DefaultConfig returns sensible defaults for completion configuration.
func DefaultConfig() Config {
	return Config{
		Model:             "gpt-4o-mini",
		Temperature:       0.8,
		MaxOutputTokens:   250,
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		RequestTimeout:    60 * time.Second,
	}
}

// Validate reports the first configuration value outside its allowed range.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Model) == "":
		return errors.New("model must be set")
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be in [0,2], got %g", c.Temperature)
	case c.MaxOutputTokens <= 0:
		return fmt.Errorf("max output tokens must be > 0, got %d", c.MaxOutputTokens)
	case c.RequestTimeout < 0:
		return fmt.Errorf("request timeout must be >= 0, got %s", c.RequestTimeout)
	}
	return c.backoff().Validate()
}

func (c Config) backoff() resilience.Backoff {
	return resilience.Backoff{
		MaxAttempts:  c.MaxRetries,
		InitialDelay: c.InitialDelay,
		Multiplier:   c.BackoffMultiplier,
	}
}

// Client calls one provider. It keeps no state between calls.
type Client struct {
	provider provider.Provider
	secrets  secrets.Store
	cfg      Config
	log      zerolog.Logger
	sleep    resilience.Sleeper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for attempt and failure events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("component", "completion").Logger() }
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(s resilience.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// New creates a client for p that reads its API key from store.
func New(p provider.Provider, store secrets.Store, cfg Config, opts ...Option) (*Client, error) {
	if p == nil {
		return nil, errors.New("completion: nil provider")
	}
	if store == nil {
		return nil, errors.New("completion: nil secret store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("completion: invalid config: %w", err)
	}
	c := &Client{
		provider: p,
		secrets:  store,
		cfg:      cfg,
		log:      zerolog.Nop(),
		sleep:    resilience.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the client's default call configuration.
func (c *Client) Config() Config { return c.cfg }

// Provider returns the name of the provider the client calls.
func (c *Client) Provider() string { return c.provider.Name() }

// Complete produces one reply using the client's configuration.
// See CompleteWith.
func (c *Client) Complete(ctx context.Context, persona string, history conversation.History, prompt string) (string, error) {
	return c.CompleteWith(ctx, c.cfg, persona, history, prompt)
}

// errThrottled marks a 429 inside the retry loop.
var errThrottled = errors.New("throttled")

// CompleteWith sends persona, history and prompt to the provider and returns
// the first candidate's text unmodified. history is read, never modified;
// prompt travels as the final user turn. Only HTTP 429 is retried. Every
// failure is a *Error.
func (c *Client) CompleteWith(ctx context.Context, cfg Config, persona string, history conversation.History, prompt string) (reply string, err error) {
	name := c.provider.Name()
	log := c.log.With().Str("provider", name).Str("model", cfg.Model).Logger()

	start := time.Now()
	metrics.ActiveCompletions.Inc()
	defer func() {
		metrics.ActiveCompletions.Dec()
		outcome := "success"
		if err != nil {
			outcome = KindOf(err).String()
			log.Error().Err(err).Str("outcome", outcome).Dur("elapsed", time.Since(start)).Msg("completion failed")
		}
		metrics.CompletionsTotal.WithLabelValues(name, outcome).Inc()
		metrics.CompletionLatency.WithLabelValues(name, cfg.Model, outcome).Observe(time.Since(start).Seconds())
	}()

	if err := validateCall(cfg, persona, history, prompt); err != nil {
		return "", &Error{Kind: KindInvalidRequest, Provider: name, Err: err}
	}

	apiKey, err := c.secrets.APIKey(name)
	if err == nil && apiKey == "" {
		err = secrets.ErrNoCredential
	}
	if err != nil {
		return "", &Error{Kind: KindMissingCredential, Provider: name, Err: err}
	}

	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	req := provider.Request{
		Model:           cfg.Model,
		Persona:         persona,
		History:         history.Clone(),
		Prompt:          prompt,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		APIKey:          apiKey,
	}

	var (
		attempts int
		last     provider.RawResponse
	)
	retryErr := resilience.Retry(ctx, cfg.backoff(), resilience.Options{
		Retryable: func(err error) bool { return errors.Is(err, errThrottled) },
		Sleep:     c.sleep,
		OnBackoff: func(attempt int, delay time.Duration, _ error) {
			metrics.BackoffSeconds.WithLabelValues(name).Add(delay.Seconds())
			log.Warn().Int("attempt", attempt+1).Dur("delay", delay).Msg("rate limited, backing off")
		},
	}, func(ctx context.Context, attempt int) error {
		attempts = attempt + 1
		log.Debug().Int("attempt", attempts).Int("history_turns", len(req.History)).Msg("sending")

		raw, sendErr := c.provider.Send(ctx, req)
		if sendErr != nil {
			metrics.AttemptsTotal.WithLabelValues(name, "transport_error").Inc()
			if errors.Is(sendErr, conversation.ErrInvalidRole) {
				return &Error{Kind: KindInvalidRequest, Provider: name, Err: sendErr}
			}
			return &Error{Kind: KindTransport, Provider: name, Attempts: attempts, Err: sendErr}
		}
		metrics.AttemptsTotal.WithLabelValues(name, strconv.Itoa(raw.StatusCode)).Inc()
		last = raw

		switch {
		case raw.StatusCode == http.StatusTooManyRequests:
			return errThrottled
		case raw.StatusCode < 200 || raw.StatusCode > 299:
			return &Error{
				Kind:       KindProtocol,
				Provider:   name,
				StatusCode: raw.StatusCode,
				Body:       snippet(raw.Body),
				Attempts:   attempts,
			}
		}

		text, exErr := c.provider.Extract(raw.Body)
		if exErr != nil {
			return &Error{
				Kind:       KindMalformedResponse,
				Provider:   name,
				StatusCode: raw.StatusCode,
				Body:       snippet(raw.Body),
				Attempts:   attempts,
				Err:        exErr,
			}
		}
		reply = text
		return nil
	})

	if retryErr == nil {
		log.Debug().Int("attempts", attempts).Dur("elapsed", time.Since(start)).Msg("completion succeeded")
		return reply, nil
	}

	var ce *Error
	switch {
	case errors.As(retryErr, &ce):
		return "", ce
	case errors.Is(retryErr, resilience.ErrAttemptsExhausted):
		if r, ok := c.secrets.(secrets.RateLimitReporter); ok {
			r.ReportRateLimited(name, apiKey)
		}
		return "", &Error{
			Kind:       KindRetriesExhausted,
			Provider:   name,
			StatusCode: last.StatusCode,
			Body:       snippet(last.Body),
			Attempts:   attempts,
		}
	default:
		// Context cancelled or deadline hit between attempts.
		return "", &Error{Kind: KindTransport, Provider: name, Attempts: attempts, Err: retryErr}
	}
}

func validateCall(cfg Config, persona string, history conversation.History, prompt string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(persona) == "" {
		return errors.New("persona must not be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt must not be empty")
	}
	return history.Validate()
}
