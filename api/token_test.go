package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	raw, err := issueToken("secret", time.Hour, 42)
	require.NoError(t, err)

	userID, err := parseToken("secret", raw)
	require.NoError(t, err)
	assert.EqualValues(t, 42, userID)
}

func TestTokenWrongSecret(t *testing.T) {
	raw, err := issueToken("secret", time.Hour, 42)
	require.NoError(t, err)

	_, err = parseToken("another-secret", raw)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	raw, err := issueToken("secret", -time.Minute, 42)
	require.NoError(t, err)

	_, err = parseToken("secret", raw)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	_, err := parseToken("secret", "definitely.not.a-token")
	assert.Error(t, err)

	_, err = parseToken("secret", "")
	assert.Error(t, err)
}
