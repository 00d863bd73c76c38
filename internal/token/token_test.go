package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := Generate("user-123", secret, time.Hour)
	require.NoError(t, err)

	userID, err := ParseUserID(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestParseUserID_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := Generate("u1", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseUserID(tok, secret)
	assert.Error(t, err)
}

func TestParseUserID_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := Generate("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseUserID(tok, []byte("wrong-secret"))
	assert.Error(t, err)
}

func TestParseUserID_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseUserID("not.a.jwt", []byte("k"))
	assert.Error(t, err)
}

func TestParseUserID_EmptyUserID(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := Generate("", secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseUserID(tok, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
