// Package secrets supplies provider API keys. Keys are only ever read from the
// environment or configuration at runtime, never compiled in.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrNoCredential is returned when no API key is available for a provider.
var ErrNoCredential = errors.New("secrets: no credential available")

// Store looks up the API key to use for a provider.
type Store interface {
	APIKey(provider string) (string, error)
}

// RateLimitReporter is implemented by stores that track per-key throttling.
type RateLimitReporter interface {
	ReportRateLimited(provider, key string)
}

// EnvStore reads keys through viper, which is bound to the environment.
// For provider "openai" it consults OPENAI_API_KEY.
type EnvStore struct {
	v *viper.Viper
}

// NewEnvStore returns a store backed by v. A nil v uses a fresh viper
// instance with automatic environment binding.
func NewEnvStore(v *viper.Viper) *EnvStore {
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}
	return &EnvStore{v: v}
}

// APIKey returns the first non-empty key configured for provider.
func (e *EnvStore) APIKey(provider string) (string, error) {
	keys := e.Keys(provider)
	if len(keys) == 0 {
		return "", fmt.Errorf("%w for %q (set %s)", ErrNoCredential, provider, singleKeyVar(provider))
	}
	return keys[0], nil
}

// Keys returns every key configured for provider: the comma separated
// <PROVIDER>_API_KEYS list followed by <PROVIDER>_API_KEY.
func (e *EnvStore) Keys(provider string) []string {
	keys := SplitKeys(e.v.GetString(multiKeyVar(provider)))
	if k := strings.TrimSpace(e.v.GetString(singleKeyVar(provider))); k != "" {
		keys = append(keys, k)
	}
	return dedupe(keys)
}

func singleKeyVar(provider string) string { return strings.ToUpper(provider) + "_API_KEY" }
func multiKeyVar(provider string) string  { return strings.ToUpper(provider) + "_API_KEYS" }

// SplitKeys splits a comma separated key list, dropping blanks.
func SplitKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var keys []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Static is a fixed provider-to-key map.
type Static map[string]string

func (s Static) APIKey(provider string) (string, error) {
	if k := s[provider]; k != "" {
		return k, nil
	}
	return "", fmt.Errorf("%w for %q", ErrNoCredential, provider)
}

var (
	_ Store = (*EnvStore)(nil)
	_ Store = Static(nil)
)
