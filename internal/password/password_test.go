package password_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyagi221B/Backend/internal/password"
)

func TestHashAndVerify(t *testing.T) {
	hasher := password.NewHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotContains(t, hash, "correct horse")

	require.True(t, hasher.Verify("correct horse battery staple", hash))
	require.False(t, hasher.Verify("wrong password", hash))
}

func TestHashSaltsEachCall(t *testing.T) {
	hasher := password.NewHasher(4)

	first, err := hasher.Hash("same input")
	require.NoError(t, err)
	second, err := hasher.Hash("same input")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, hasher.Verify("same input", first))
	require.True(t, hasher.Verify("same input", second))
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := password.NewHasher(4)

	require.False(t, hasher.Verify("anything", "not a bcrypt hash"))
	require.False(t, hasher.Verify("anything", ""))
}

func TestInvalidCostFallsBack(t *testing.T) {
	hasher := password.NewHasher(99)

	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	require.True(t, hasher.Verify("pw", hash))
}
