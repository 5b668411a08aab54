package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	require.NoError(t, Init("1h"))
	id := uuid.New()

	token, err := CreateJWT(id.String())
	require.NoError(t, err)

	got, err := UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
}

func TestTokenFromOtherKeyRejected(t *testing.T) {
	require.NoError(t, Init("never"))
	token, err := CreateJWT(uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, Init("never"))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestInitRejectsBadExpiry(t *testing.T) {
	assert.Error(t, Init("soon"))
}

func TestPasswordHash(t *testing.T) {
	hash, err := CreateHash("hunter2", Params)
	require.NoError(t, err)

	ok, err := ComparePasswordAndHash("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ComparePasswordAndHash("hunter2", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestNeedsRehash(t *testing.T) {
	cheap := HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := CreateHash("hunter2", cheap)
	require.NoError(t, err)

	assert.False(t, NeedsRehash(hash, cheap))
	assert.True(t, NeedsRehash(hash, Params))
	assert.True(t, NeedsRehash("garbage", Params))

	ok, err := ComparePasswordAndHash("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok, "old hashes still verify")
}
