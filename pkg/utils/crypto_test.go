package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := Encrypt([]byte("access-token-value"), key)
	require.NoError(t, err)
	assert.NotEqual(t, "access-token-value", ciphertext)

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, "access-token-value", plaintext)
}

func TestDecryptWithWrongKey(t *testing.T) {
	ciphertext, err := Encrypt([]byte("access-token-value"), key)
	require.NoError(t, err)

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	_, err = Decrypt(ciphertext, otherKey)
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt("not-base64!!", key)
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", key)
	assert.Error(t, err)
}

func TestStateTokenRoundTrip(t *testing.T) {
	token, err := GenerateStateToken("state-secret", "instagram", 15*time.Minute)
	require.NoError(t, err)

	claims, err := ValidateStateToken("state-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "instagram", claims.Platform)
}

func TestStateTokenWrongSecret(t *testing.T) {
	token, err := GenerateStateToken("state-secret", "instagram", 15*time.Minute)
	require.NoError(t, err)

	_, err = ValidateStateToken("other-secret", token)
	assert.Error(t, err)
}

func TestStateTokenExpired(t *testing.T) {
	token, err := GenerateStateToken("state-secret", "instagram", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateStateToken("state-secret", token)
	assert.Error(t, err)
}
