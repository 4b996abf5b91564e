package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerate(t *testing.T) {
	raw, key, err := Generate("ci", []string{ScopeRead})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, Prefix))
	assert.Len(t, raw, len(Prefix)+2*secretBytes)
	assert.Equal(t, raw[:PrefixLen], key.KeyPrefix)
	assert.Equal(t, []string{ScopeRead}, key.Scopes)
	assert.Equal(t, "ci", key.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)))
}

func TestGenerate_DefaultScopes(t *testing.T) {
	_, key, err := Generate("default", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ScopeRead, ScopeWrite}, key.Scopes)
}

func TestGenerate_InvalidScope(t *testing.T) {
	_, _, err := Generate("bad", []string{"root"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestGenerate_Unique(t *testing.T) {
	a, _, err := Generate("a", nil)
	require.NoError(t, err)
	b, _, err := Generate("b", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
