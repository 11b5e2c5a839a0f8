package secrets

import (
	"fmt"
	"sync"
	"time"
)

// KeyPool rotates through several keys for one provider, skipping keys that
// were recently rate-limited.
type KeyPool struct {
	mu       sync.Mutex
	provider string
	keys     []keyEntry
	current  int
	cooldown time.Duration
	now      func() time.Time
}

type keyEntry struct {
	key     string
	limited bool
	resetAt time.Time
}

// NewKeyPool creates a pool for provider. A rate-limited key is skipped for cooldown.
func NewKeyPool(provider string, keys []string, cooldown time.Duration) *KeyPool {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	entries := make([]keyEntry, len(keys))
	for i, k := range keys {
		entries[i] = keyEntry{key: k}
	}
	return &KeyPool{
		provider: provider,
		keys:     entries,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// APIKey returns the next usable key in round-robin order. When every key is
// rate-limited the one that resets first is returned rather than failing,
// since the caller's own backoff handles the throttling.
func (kp *KeyPool) APIKey(provider string) (string, error) {
	if provider != kp.provider {
		return "", fmt.Errorf("%w for %q (pool serves %q)", ErrNoCredential, provider, kp.provider)
	}

	kp.mu.Lock()
	defer kp.mu.Unlock()

	n := len(kp.keys)
	if n == 0 {
		return "", fmt.Errorf("%w for %q (empty key pool)", ErrNoCredential, provider)
	}

	now := kp.now()
	for i := 0; i < n; i++ {
		idx := (kp.current + i) % n
		entry := &kp.keys[idx]

		if entry.limited && !now.Before(entry.resetAt) {
			entry.limited = false
		}
		if !entry.limited {
			kp.current = (idx + 1) % n
			return entry.key, nil
		}
	}

	earliest := 0
	for i := 1; i < n; i++ {
		if kp.keys[i].resetAt.Before(kp.keys[earliest].resetAt) {
			earliest = i
		}
	}
	kp.current = (earliest + 1) % n
	return kp.keys[earliest].key, nil
}

// ReportRateLimited marks key as throttled for the pool's cooldown.
func (kp *KeyPool) ReportRateLimited(provider, key string) {
	if provider != kp.provider {
		return
	}
	kp.mu.Lock()
	defer kp.mu.Unlock()

	for i := range kp.keys {
		if kp.keys[i].key == key {
			kp.keys[i].limited = true
			kp.keys[i].resetAt = kp.now().Add(kp.cooldown)
			return
		}
	}
}

// Size returns the number of keys in the pool.
func (kp *KeyPool) Size() int {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	return len(kp.keys)
}

var (
	_ Store             = (*KeyPool)(nil)
	_ RateLimitReporter = (*KeyPool)(nil)
)
