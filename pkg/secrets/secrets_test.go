package secrets

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore_SingleKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", " g-key ")

	key, err := NewEnvStore(nil).APIKey("gemini")
	require.NoError(t, err)
	assert.Equal(t, "g-key", key)
}

func TestEnvStore_KeyListTakesPrecedence(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "a, b,,a")
	t.Setenv("OPENAI_API_KEY", "c")

	s := NewEnvStore(nil)
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys("openai"))

	key, err := s.APIKey("openai")
	require.NoError(t, err)
	assert.Equal(t, "a", key)
}

func TestEnvStore_Missing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEYS", "")

	_, err := NewEnvStore(nil).APIKey("openai")
	require.ErrorIs(t, err, ErrNoCredential)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestEnvStore_ExplicitViper(t *testing.T) {
	v := viper.New()
	v.Set("GEMINI_API_KEY", "from-config")

	key, err := NewEnvStore(v).APIKey("gemini")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
}

func TestSplitKeys(t *testing.T) {
	assert.Nil(t, SplitKeys(""))
	assert.Equal(t, []string{"x", "y"}, SplitKeys(" x ,, y "))
}

func TestStatic(t *testing.T) {
	s := Static{"openai": "k"}
	key, err := s.APIKey("openai")
	require.NoError(t, err)
	assert.Equal(t, "k", key)

	_, err = s.APIKey("gemini")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestKeyPool_RoundRobin(t *testing.T) {
	kp := NewKeyPool("openai", []string{"a", "b", "c"}, time.Minute)

	var got []string
	for i := 0; i < 4; i++ {
		k, err := kp.APIKey("openai")
		require.NoError(t, err)
		got = append(got, k)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
	assert.Equal(t, 3, kp.Size())
}

func TestKeyPool_SkipsRateLimitedUntilReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kp := NewKeyPool("openai", []string{"a", "b"}, time.Minute)
	kp.now = func() time.Time { return now }

	kp.ReportRateLimited("openai", "a")

	for i := 0; i < 3; i++ {
		k, err := kp.APIKey("openai")
		require.NoError(t, err)
		assert.Equal(t, "b", k)
	}

	now = now.Add(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		k, err := kp.APIKey("openai")
		require.NoError(t, err)
		seen[k] = true
	}
	assert.True(t, seen["a"], "key a should be usable again after cooldown")
}

func TestKeyPool_AllLimitedReturnsEarliestReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kp := NewKeyPool("gemini", []string{"a", "b"}, time.Minute)
	kp.now = func() time.Time { return now }

	kp.ReportRateLimited("gemini", "b")
	now = now.Add(10 * time.Second)
	kp.ReportRateLimited("gemini", "a")

	k, err := kp.APIKey("gemini")
	require.NoError(t, err)
	assert.Equal(t, "b", k)
}

func TestKeyPool_WrongProviderOrEmpty(t *testing.T) {
	_, err := NewKeyPool("openai", []string{"a"}, 0).APIKey("gemini")
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = NewKeyPool("openai", nil, 0).APIKey("openai")
	assert.ErrorIs(t, err, ErrNoCredential)
}
