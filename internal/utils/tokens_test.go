package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetTokensCache() {
	tokens.Lock()
	tokens.cache = nil
	tokens.Unlock()
}

func TestLoadTokensAndValidation(t *testing.T) {
	defer resetTokensCache()

	assert.False(t, TokensReady())
	LoadTokensFromMap(map[string]int{"a": 5, "b": 10})

	assert.True(t, TokensReady())
	assert.True(t, ValidateToken("a"))
	assert.Equal(t, 5, GetRateLimit("a"))
	assert.True(t, ValidateToken("b"))
	assert.Equal(t, 10, GetRateLimit("b"))
	assert.False(t, ValidateToken("c"))
	assert.Equal(t, 0, GetRateLimit("c"))
}

func TestLoadTokensUpdatesCache(t *testing.T) {
	defer resetTokensCache()

	LoadTokensFromMap(map[string]int{"a": 5, "b": 10})
	assert.Equal(t, 10, GetRateLimit("b"))

	LoadTokensFromMap(map[string]int{"a": 7, "c": 12})

	assert.True(t, ValidateToken("a"))
	assert.Equal(t, 7, GetRateLimit("a"))
	assert.False(t, ValidateToken("b"))
	assert.True(t, ValidateToken("c"))
	assert.Equal(t, 12, GetRateLimit("c"))
}

func TestLoadTokensFromMap_CopiesInput(t *testing.T) {
	defer resetTokensCache()

	src := map[string]int{"a": 1}
	LoadTokensFromMap(src)
	src["b"] = 2

	assert.False(t, ValidateToken("b"))
}

func TestLoadTokensFromFile(t *testing.T) {
	defer resetTokensCache()

	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("server:\n  port: \":1\"\nauth:\n  tokens:\n    office: 30\n"), 0o644))

	require.NoError(t, LoadTokensFromFile(p))
	assert.True(t, ValidateToken("office"))
	assert.Equal(t, 30, GetRateLimit("office"))
}

func TestLoadTokensFromFile_Errors(t *testing.T) {
	defer resetTokensCache()

	assert.Error(t, LoadTokensFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("auth:\n  tokens:\n    office: -1\n"), 0o644))
	assert.Error(t, LoadTokensFromFile(p))
	assert.False(t, TokensReady())
}

func TestRefreshTokensPeriodically(t *testing.T) {
	defer resetTokensCache()

	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("auth:\n  tokens:\n    first: 1\n"), 0o644))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		RefreshTokensPeriodically(p, 10*time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ValidateToken("first") }, time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(p, []byte("auth:\n  tokens:\n    second: 2\n"), 0o644))
	assert.Eventually(t, func() bool { return ValidateToken("second") && !ValidateToken("first") }, time.Second, 10*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}

func TestTokenErrors_AreDistinct(t *testing.T) {
	assert.NotEqual(t, ErrTokenStoreNotReady, ErrInvalidAPIKey)
	assert.NotEmpty(t, ErrTokenStoreNotReady.Error())
	assert.NotEmpty(t, ErrInvalidAPIKey.Error())
}
