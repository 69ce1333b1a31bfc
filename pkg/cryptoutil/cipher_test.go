package cryptoutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	plaintext := []byte("secret-value-123")
	aad := []byte("test-aad")

	blob, err := c.Encrypt(plaintext, aad)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(blob), 28)

	got, err := c.Decrypt(blob, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptWrongAADFails(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte("secret-value-123"), []byte("test-aad"))
	require.NoError(t, err)

	_, err = c.Decrypt(blob, []byte("wrong-aad"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.EncryptionError))
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte{}, []byte("aad"))
	require.NoError(t, err)

	got, err := c.Decrypt(blob, []byte("aad"))
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestNonceIsFreshEveryCall(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	plaintext := []byte("same data")
	aad := []byte("aad")

	enc1, err := c.Encrypt(plaintext, aad)
	require.NoError(t, err)
	enc2, err := c.Encrypt(plaintext, aad)
	require.NoError(t, err)

	assert.NotEqual(t, enc1, enc2)
	assert.NotEqual(t, enc1[:12], enc2[:12])
}

func TestDecryptTamperedDataFails(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte("secret"), []byte("aad"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF

	_, err = c.Decrypt(blob, []byte("aad"))
	require.Error(t, err)
}

func TestDecryptShortInputFails(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("short"), []byte("aad"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.EncryptionError))
}

func TestAADBindsToAgentAndCredential(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	agentA, credA := uuid.New(), uuid.New()
	agentB, credB := uuid.New(), uuid.New()

	blob, err := c.Encrypt([]byte("bound-secret"), AAD(agentA, credA))
	require.NoError(t, err)

	_, err = c.Decrypt(blob, AAD(agentB, credB))
	assert.Error(t, err)

	_, err = c.Decrypt(blob, AAD(agentA, credB))
	assert.Error(t, err)

	_, err = c.Decrypt(blob, AAD(agentB, credA))
	assert.Error(t, err)

	got, err := c.Decrypt(blob, AAD(agentA, credA))
	require.NoError(t, err)
	assert.Equal(t, []byte("bound-secret"), got)
}

func TestAADLength(t *testing.T) {
	aad := AAD(uuid.New(), uuid.New())
	assert.Len(t, aad, 32)
}

func TestVerifyAAD(t *testing.T) {
	agentID, credID := uuid.New(), uuid.New()
	aad := AAD(agentID, credID)

	assert.True(t, VerifyAAD(aad, agentID, credID))
	assert.False(t, VerifyAAD(aad, uuid.New(), credID))
	assert.False(t, VerifyAAD(aad, agentID, uuid.New()))
}
